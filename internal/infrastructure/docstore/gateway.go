package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"scribe-server/internal/domain/schema"
	"scribe-server/internal/infrastructure/logger"
	"scribe-server/internal/infrastructure/metrics"
)

const (
	// BlockCharLimit is the store's per-fragment character ceiling.
	BlockCharLimit = 2000
	// blockBatchSize is the store's per-request ceiling on appended blocks.
	blockBatchSize = 100
	// exampleLimit bounds few-shot example fetches for prompt-size control.
	exampleLimit = 3
)

// Record is the typed-property map of one stored record.
type Record map[string]json.RawMessage

// Collection describes a discovered child collection.
type Collection struct {
	ID     string
	Title  string
	Fields schema.Schema
}

// ConfigEntry is one row of the configuration collection: a named target
// collection with its system prompt.
type ConfigEntry struct {
	Name         string `json:"name"`
	TargetID     string `json:"target_db_id"`
	SystemPrompt string `json:"system_prompt"`
}

// Gateway exposes the typed document-store operations used by the pipeline.
type Gateway struct {
	client *Client
}

func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

// GetSchema fetches a collection's field definitions. An invalid-type status
// means the id refers to some other resource kind; that surfaces as
// NotACollectionError rather than the raw status.
func (g *Gateway) GetSchema(ctx context.Context, id string) (schema.Schema, error) {
	payload, err := g.client.Call(ctx, http.MethodGet, "databases/"+id, nil,
		WithIgnoreStatuses(http.StatusBadRequest))
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, &NotACollectionError{ID: id}
	}

	var resp struct {
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode collection metadata: %w", err)
	}
	return schema.Parse(resp.Properties)
}

// ListRecent returns the typed-property maps of the most recently created
// records, newest first. A missing or empty result is an empty slice, never
// an error.
func (g *Gateway) ListRecent(ctx context.Context, id string, limit int) ([]Record, error) {
	body := map[string]any{
		"page_size": limit,
		"sorts": []map[string]string{
			{"timestamp": "created_time", "direction": "descending"},
		},
	}
	payload, err := g.client.Call(ctx, http.MethodPost, "databases/"+id+"/query", body)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return []Record{}, nil
	}

	var resp struct {
		Results []struct {
			Properties Record `json:"properties"`
		} `json:"results"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(resp.Results))
	for _, r := range resp.Results {
		records = append(records, r.Properties)
	}
	return records, nil
}

// ListExamples returns a small bounded set of recent records for few-shot
// prompt context.
func (g *Gateway) ListExamples(ctx context.Context, id string) ([]Record, error) {
	return g.ListRecent(ctx, id, exampleLimit)
}

// CreatedRecord identifies a newly persisted record.
type CreatedRecord struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateRecord persists a new record and returns its id and canonical URL.
func (g *Gateway) CreateRecord(ctx context.Context, id string, properties schema.Properties) (*CreatedRecord, error) {
	body := map[string]any{
		"parent":     map[string]string{"database_id": id},
		"properties": properties,
	}
	payload, err := g.client.Call(ctx, http.MethodPost, "pages", body)
	if err != nil {
		return nil, err
	}

	var created CreatedRecord
	if payload != nil {
		if err := json.Unmarshal(payload, &created); err == nil && created.URL != "" {
			metrics.RecordsCreatedTotal.Inc()
			return &created, nil
		}
	}
	return nil, &CreateFailedError{Kind: "record"}
}

// PartialAppendError reports that only part of an append succeeded. The
// successful batches stand; the caller decides whether to surface or retry.
type PartialAppendError struct {
	FailedBatches int
	TotalBatches  int
}

func (e *PartialAppendError) Error() string {
	return fmt.Sprintf("appended %d of %d block batches", e.TotalBatches-e.FailedBatches, e.TotalBatches)
}

// AppendContent appends text to a page as paragraph blocks, splitting it into
// fragments within the store's character limit and submitting at most
// blockBatchSize blocks per request. A partially failed append is reported,
// never silently swallowed.
func (g *Gateway) AppendContent(ctx context.Context, id, text string) error {
	if text == "" {
		return nil
	}

	blocks := ContentBlocks(text)
	total := (len(blocks) + blockBatchSize - 1) / blockBatchSize
	failed := 0

	for i := 0; i < len(blocks); i += blockBatchSize {
		end := i + blockBatchSize
		if end > len(blocks) {
			end = len(blocks)
		}
		body := map[string]any{"children": blocks[i:end]}
		payload, err := g.client.Call(ctx, http.MethodPatch, "blocks/"+id+"/children", body)
		if err != nil || payload == nil {
			log := logger.GetLogger()
			log.Warn().Err(err).Str("page_id", id).Int("batch", i/blockBatchSize).Msg("block batch append failed")
			failed++
		}
	}

	if failed > 0 {
		return &PartialAppendError{FailedBatches: failed, TotalBatches: total}
	}
	return nil
}

// ContentBlocks converts text into the store's paragraph block payloads,
// splitting on the per-fragment character limit.
func ContentBlocks(text string) []map[string]any {
	var blocks []map[string]any
	runes := []rune(text)
	for i := 0; i < len(runes); i += BlockCharLimit {
		end := i + BlockCharLimit
		if end > len(runes) {
			end = len(runes)
		}
		blocks = append(blocks, map[string]any{
			"object": "block",
			"type":   "paragraph",
			"paragraph": map[string]any{
				"rich_text": []map[string]any{
					{"type": "text", "text": map[string]string{"content": string(runes[i:end])}},
				},
			},
		})
	}
	return blocks
}

// DiscoverChildCollection lists the children of a container and returns the
// first non-archived child collection whose title matches exactly. A missing
// match returns (nil, nil).
func (g *Gateway) DiscoverChildCollection(ctx context.Context, parentID, title string) (*Collection, error) {
	payload, err := g.client.Call(ctx, http.MethodGet,
		fmt.Sprintf("blocks/%s/children?page_size=%d", parentID, blockBatchSize), nil)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	var resp struct {
		Results []struct {
			ID            string `json:"id"`
			Type          string `json:"type"`
			Archived      bool   `json:"archived"`
			ChildDatabase *struct {
				Title string `json:"title"`
			} `json:"child_database"`
		} `json:"results"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode children list: %w", err)
	}

	for _, block := range resp.Results {
		if block.Archived || block.Type != "child_database" || block.ChildDatabase == nil {
			continue
		}
		if block.ChildDatabase.Title != title {
			continue
		}
		fields, err := g.GetSchema(ctx, block.ID)
		if err != nil {
			return nil, err
		}
		return &Collection{ID: block.ID, Title: title, Fields: fields}, nil
	}
	return nil, nil
}

// CreateCollection provisions a new collection under a container page and
// returns its id.
func (g *Gateway) CreateCollection(ctx context.Context, parentID, title string, fields schema.Schema) (string, error) {
	body := map[string]any{
		"parent": map[string]string{"type": "page_id", "page_id": parentID},
		"title": []map[string]any{
			{"type": "text", "text": map[string]any{"content": title, "link": nil}},
		},
		"properties": fields,
	}
	payload, err := g.client.Call(ctx, http.MethodPost, "databases", body)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	if payload != nil {
		if err := json.Unmarshal(payload, &resp); err == nil && resp.ID != "" {
			return resp.ID, nil
		}
	}
	return "", &CreateFailedError{Kind: "collection", Title: title}
}

// GetPage fetches the metadata of a single page.
func (g *Gateway) GetPage(ctx context.Context, id string) (json.RawMessage, error) {
	return g.client.Call(ctx, http.MethodGet, "pages/"+id, nil)
}

// ListConfigEntries reads the configuration collection: each row names a
// target collection and its system prompt. Rows without a name are dropped.
func (g *Gateway) ListConfigEntries(ctx context.Context, configID string) ([]ConfigEntry, error) {
	records, err := g.ListRecent(ctx, configID, blockBatchSize)
	if err != nil {
		return nil, err
	}

	entries := make([]ConfigEntry, 0, len(records))
	for _, record := range records {
		entry := ConfigEntry{
			Name:         flattenString(record["Name"]),
			TargetID:     flattenString(record["TargetDB_ID"]),
			SystemPrompt: flattenString(record["SystemPrompt"]),
		}
		if entry.Name == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// QueryRecords returns full record payloads, most recently edited first.
// Bulk queries get the longer per-attempt timeout.
func (g *Gateway) QueryRecords(ctx context.Context, id string, limit int) ([]json.RawMessage, error) {
	body := map[string]any{
		"page_size": limit,
		"sorts": []map[string]string{
			{"timestamp": "last_edited_time", "direction": "descending"},
		},
	}
	payload, err := g.client.Call(ctx, http.MethodPost, "databases/"+id+"/query", body,
		WithTimeout(g.client.cfg.BulkTimeout))
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	var resp struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, nil
	}
	return resp.Results, nil
}

func flattenString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	if s, ok := schema.Flatten(raw).(string); ok {
		return s
	}
	return ""
}
