package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scribe-server/internal/domain/intake"
	"scribe-server/internal/domain/prompt"
	"scribe-server/internal/domain/schema"
	"scribe-server/internal/interfaces/httpserver/dto"
)

type chatRequest struct {
	Text          string        `json:"text"`
	CollectionID  string        `json:"collection_id"`
	SystemPrompt  string        `json:"system_prompt"`
	History       []prompt.Turn `json:"history"`
	ImageData     string        `json:"image_data"`
	ImageMimeType string        `json:"image_mime_type"`
	Model         string        `json:"model"`
}

// pageFields is the schema used when no target collection is named: the chat
// then refines free text into a titled page with body content.
func pageFields() schema.Schema {
	return schema.Schema{
		"Title":   {Name: "Title", Type: schema.TypeTitle},
		"Content": {Name: "Content", Type: schema.TypeRichText},
	}
}

// Chat handles POST /v1/chat: one conversational turn, optionally with an
// image attachment and a target collection whose schema shapes the reply.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Err("invalid_request", err.Error()))
		return
	}
	if req.Text == "" && req.ImageData == "" {
		c.JSON(http.StatusBadRequest, dto.Err("invalid_request", "text or image_data is required"))
		return
	}

	fields := pageFields()
	if req.CollectionID != "" {
		fetched, err := h.svc.Schema(c.Request.Context(), req.CollectionID)
		if err != nil {
			writeError(c, err)
			return
		}
		fields = fetched
	}

	result, err := h.svc.ChatAnalyze(c.Request.Context(), intake.ChatRequest{
		Text:         req.Text,
		Fields:       fields,
		SystemPrompt: req.SystemPrompt,
		History:      req.History,
		ImageData:    req.ImageData,
		ImageMIME:    req.ImageMimeType,
		Model:        req.Model,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set("model", result.Model)
	c.JSON(http.StatusOK, dto.OK(result))
}
