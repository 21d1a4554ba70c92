package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"scribe-server/internal/domain/schema"
	"scribe-server/internal/interfaces/httpserver/dto"
)

const maxRecordPageSize = 100

type collectionFieldSpec struct {
	Type    string   `json:"type" binding:"required"`
	Options []string `json:"options"`
}

type ensureCollectionRequest struct {
	Title  string                         `json:"title" binding:"required"`
	Fields map[string]collectionFieldSpec `json:"fields"`
}

// EnsureCollection handles POST /v1/collections: find a collection by title
// under the configured root page, creating it when absent. Repeated calls
// with the same title are idempotent.
func (h *Handler) EnsureCollection(c *gin.Context) {
	if h.cfg.DocstoreRootPageID == "" {
		c.JSON(http.StatusBadRequest, dto.Err("invalid_request", "no root page configured"))
		return
	}

	var req ensureCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Err("invalid_request", err.Error()))
		return
	}

	fields, err := buildFieldDefinitions(req.Fields, req.Title)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Err("invalid_request", err.Error()))
		return
	}

	ctx := c.Request.Context()
	page, err := h.gateway.GetPage(ctx, h.cfg.DocstoreRootPageID)
	if err != nil {
		writeError(c, err)
		return
	}

	existing, err := h.gateway.DiscoverChildCollection(ctx, h.cfg.DocstoreRootPageID, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	if existing != nil {
		c.JSON(http.StatusOK, dto.OK(gin.H{
			"id":      existing.ID,
			"title":   existing.Title,
			"parent":  pageTitle(page),
			"fields":  existing.Fields,
			"created": false,
		}))
		return
	}

	id, err := h.gateway.CreateCollection(ctx, h.cfg.DocstoreRootPageID, req.Title, fields)
	if err != nil {
		writeError(c, err)
		return
	}

	h.log.Info().Str("collection", id).Str("title", req.Title).Msg("collection created")
	c.JSON(http.StatusOK, dto.OK(gin.H{
		"id":      id,
		"title":   req.Title,
		"parent":  pageTitle(page),
		"fields":  fields,
		"created": true,
	}))
}

// ListRecords handles GET /v1/collections/:id/records: recent record payloads
// from one collection, most recently edited first.
func (h *Handler) ListRecords(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, dto.Err("invalid_request", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxRecordPageSize {
		limit = maxRecordPageSize
	}

	records, err := h.gateway.QueryRecords(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	c.JSON(http.StatusOK, dto.OK(gin.H{"records": records}))
}

// buildFieldDefinitions turns the request's field specs into schema field
// definitions. An empty spec yields a minimal title-plus-notes layout.
func buildFieldDefinitions(specs map[string]collectionFieldSpec, title string) (schema.Schema, error) {
	if len(specs) == 0 {
		return schema.Schema{
			"Name":  {Name: "Name", Type: schema.TypeTitle},
			"Notes": {Name: "Notes", Type: schema.TypeRichText},
		}, nil
	}

	fields := make(schema.Schema, len(specs))
	hasTitle := false
	for name, spec := range specs {
		fieldType := schema.FieldType(spec.Type)
		switch fieldType {
		case schema.TypeTitle, schema.TypeRichText, schema.TypeSelect, schema.TypeMultiSelect,
			schema.TypeStatus, schema.TypeDate, schema.TypeCheckbox, schema.TypeNumber:
		default:
			return nil, &unsupportedFieldTypeError{Name: name, Type: spec.Type}
		}

		field := schema.Field{Name: name, Type: fieldType}
		for _, opt := range spec.Options {
			field.Options = append(field.Options, schema.Option{Name: opt})
		}
		if fieldType == schema.TypeTitle {
			hasTitle = true
		}
		fields[name] = field
	}
	if !hasTitle {
		fields["Name"] = schema.Field{Name: "Name", Type: schema.TypeTitle}
	}
	return fields, nil
}

type unsupportedFieldTypeError struct {
	Name string
	Type string
}

func (e *unsupportedFieldTypeError) Error() string {
	return "field " + e.Name + " has unsupported type " + e.Type
}

// pageTitle extracts the plain-text title from a page payload.
func pageTitle(payload json.RawMessage) string {
	var page struct {
		Properties map[string]struct {
			Title []json.RawMessage `json:"title"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(payload, &page); err != nil {
		return ""
	}
	for _, prop := range page.Properties {
		if len(prop.Title) > 0 {
			return schema.PlainText(prop.Title)
		}
	}
	return ""
}
