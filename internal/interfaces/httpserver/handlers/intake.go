package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"scribe-server/internal/config"
	"scribe-server/internal/domain/intake"
	"scribe-server/internal/domain/model"
	"scribe-server/internal/infrastructure/docstore"
	"scribe-server/internal/interfaces/httpserver/dto"
)

// Handler serves the pipeline's HTTP surface.
type Handler struct {
	svc      *intake.Service
	gateway  *docstore.Gateway
	registry *model.Registry
	cfg      *config.Config
	log      zerolog.Logger
}

func NewHandler(svc *intake.Service, gateway *docstore.Gateway, registry *model.Registry, cfg *config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		gateway:  gateway,
		registry: registry,
		cfg:      cfg,
		log:      log.With().Str("component", "handlers").Logger(),
	}
}

type intakeRequest struct {
	Text         string `json:"text" binding:"required"`
	CollectionID string `json:"collection_id"`
	Config       string `json:"config"`
	SystemPrompt string `json:"system_prompt"`
	Model        string `json:"model"`
}

// Intake handles POST /v1/intake: one full text-to-record pass. The target
// collection is given directly or resolved by config-entry name.
func (h *Handler) Intake(c *gin.Context) {
	var req intakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Err("invalid_request", err.Error()))
		return
	}

	collectionID := req.CollectionID
	systemPrompt := req.SystemPrompt
	if collectionID == "" {
		entry, err := h.resolveConfig(c, req.Config)
		if err != nil {
			writeError(c, err)
			return
		}
		if entry == nil {
			c.JSON(http.StatusBadRequest, dto.Err("invalid_request", "collection_id or a known config name is required"))
			return
		}
		collectionID = entry.TargetID
		if systemPrompt == "" {
			systemPrompt = entry.SystemPrompt
		}
	}

	result, err := h.svc.ProcessIntake(c.Request.Context(), intake.IntakeRequest{
		Text:         req.Text,
		CollectionID: collectionID,
		SystemPrompt: systemPrompt,
		Model:        req.Model,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set("model", result.Model)
	c.JSON(http.StatusOK, dto.OK(result))
}

// resolveConfig finds the named config entry, or nil when unknown.
func (h *Handler) resolveConfig(c *gin.Context, name string) (*docstore.ConfigEntry, error) {
	if name == "" || h.cfg.DocstoreConfigDBID == "" {
		return nil, nil
	}
	entries, err := h.gateway.ListConfigEntries(c.Request.Context(), h.cfg.DocstoreConfigDBID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if strings.EqualFold(entries[i].Name, name) {
			return &entries[i], nil
		}
	}
	return nil, nil
}
