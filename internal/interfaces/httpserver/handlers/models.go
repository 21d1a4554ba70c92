package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scribe-server/internal/interfaces/httpserver/dto"
)

// Models handles GET /v1/models: the credentialed subset of the catalog plus
// the configured defaults.
func (h *Handler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, dto.OK(gin.H{
		"models":             h.registry.Available(),
		"default_text":       h.cfg.DefaultTextModel,
		"default_multimodal": h.cfg.DefaultMultimodalModel,
	}))
}

// Configs handles GET /v1/configs: the named target collections from the
// configuration collection.
func (h *Handler) Configs(c *gin.Context) {
	if h.cfg.DocstoreConfigDBID == "" {
		c.JSON(http.StatusOK, dto.OK(gin.H{"configs": []any{}}))
		return
	}
	entries, err := h.gateway.ListConfigEntries(c.Request.Context(), h.cfg.DocstoreConfigDBID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(gin.H{"configs": entries}))
}
