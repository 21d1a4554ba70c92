package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	decimal "github.com/shopspring/decimal"

	"scribe-server/internal/config"
	"scribe-server/internal/domain/intake"
	"scribe-server/internal/domain/model"
	"scribe-server/internal/domain/schema"
	"scribe-server/internal/infrastructure/docstore"
	"scribe-server/internal/infrastructure/llmclient"
)

type fakeStore struct {
	fields       schema.Schema
	schemaErr    error
	collectionID string
	createdProps schema.Properties
	appendedText string
}

func (f *fakeStore) GetSchema(ctx context.Context, id string) (schema.Schema, error) {
	f.collectionID = id
	if f.schemaErr != nil {
		return nil, f.schemaErr
	}
	return f.fields, nil
}

func (f *fakeStore) ListExamples(ctx context.Context, id string) ([]docstore.Record, error) {
	return nil, nil
}

func (f *fakeStore) CreateRecord(ctx context.Context, id string, props schema.Properties) (*docstore.CreatedRecord, error) {
	f.createdProps = props
	return &docstore.CreatedRecord{ID: "rec-1", URL: "https://notes.example/rec-1"}, nil
}

func (f *fakeStore) AppendContent(ctx context.Context, id, text string) error {
	f.appendedText = text
	return nil
}

type fakeGenerator struct {
	content string
	prompt  string
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, modelID, promptText string, parts []openai.ChatMessagePart) (*llmclient.Result, error) {
	f.prompt = promptText
	return &llmclient.Result{
		Content: f.content,
		Usage:   openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		Cost:    decimal.Zero,
		Model:   modelID,
	}, nil
}

type fakePicker struct{ id string }

func (f *fakePicker) Select(hasImage bool, userChoice string) (string, error) {
	return f.id, nil
}

func taskFields() schema.Schema {
	return schema.Schema{
		"Title": {Name: "Title", Type: schema.TypeTitle},
	}
}

func newTestHandler(t *testing.T, store *fakeStore, gen *fakeGenerator, cfg *config.Config, gatewayURL string) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()
	svc := intake.NewService(store, gen, &fakePicker{id: "openai/gpt-4o-mini"}, log)

	client := docstore.NewClient(docstore.Config{BaseURL: gatewayURL, Token: "tok", Version: "2022-06-28"})
	gateway := docstore.NewGateway(client)

	registry := model.NewRegistry([]model.Descriptor{
		{ID: "openai/gpt-4o-mini", Name: "gpt-4o-mini", Provider: "openai", DisplayProvider: "OpenAI", SupportsVision: true, SupportsJSON: true},
		{ID: "anthropic/claude-3-5-haiku-latest", Name: "claude-3-5-haiku-latest", Provider: "anthropic", DisplayProvider: "Anthropic", SupportsJSON: true},
	}, cfg)

	return NewHandler(svc, gateway, registry, cfg, log)
}

func newRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.POST("/v1/intake", h.Intake)
	r.POST("/v1/chat", h.Chat)
	r.GET("/v1/models", h.Models)
	r.GET("/v1/configs", h.Configs)
	r.POST("/v1/collections", h.EnsureCollection)
	r.GET("/v1/collections/:id/records", h.ListRecords)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, parsed
}

func TestIntakeWithDirectCollection(t *testing.T) {
	store := &fakeStore{fields: taskFields()}
	gen := &fakeGenerator{content: `{"Title": "Buy milk"}`}
	cfg := &config.Config{OpenAIAPIKey: "k", DefaultTextModel: "openai/gpt-4o-mini", DefaultMultimodalModel: "openai/gpt-4o-mini"}
	h := newTestHandler(t, store, gen, cfg, "http://unused.invalid")

	w, resp := doJSON(t, newRouter(h), http.MethodPost, "/v1/intake", gin.H{
		"text":          "buy milk tomorrow",
		"collection_id": "db-tasks",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["success"] != true {
		t.Fatalf("expected success, got %v", resp)
	}
	data := resp["data"].(map[string]any)
	if data["url"] != "https://notes.example/rec-1" {
		t.Fatalf("unexpected url %v", data["url"])
	}
	if store.collectionID != "db-tasks" {
		t.Fatalf("wrong collection %q", store.collectionID)
	}
	if store.appendedText != "buy milk tomorrow" {
		t.Fatalf("content not appended: %q", store.appendedText)
	}
}

func TestIntakeRequiresText(t *testing.T) {
	h := newTestHandler(t, &fakeStore{fields: taskFields()}, &fakeGenerator{content: "{}"},
		&config.Config{}, "http://unused.invalid")

	w, resp := doJSON(t, newRouter(h), http.MethodPost, "/v1/intake", gin.H{"collection_id": "db-tasks"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp["success"] != false {
		t.Fatalf("expected failure envelope, got %v", resp)
	}
}

func TestIntakeResolvesConfigByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "databases/cfg-db/query") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"results":[{"properties":{
			"Name":{"type":"title","title":[{"plain_text":"Tasks"}]},
			"TargetDB_ID":{"type":"rich_text","rich_text":[{"plain_text":"db-tasks"}]},
			"SystemPrompt":{"type":"rich_text","rich_text":[{"plain_text":"Be terse."}]}
		}}]}`))
	}))
	defer srv.Close()

	store := &fakeStore{fields: taskFields()}
	gen := &fakeGenerator{content: `{"Title": "Buy milk"}`}
	cfg := &config.Config{DocstoreConfigDBID: "cfg-db"}
	h := newTestHandler(t, store, gen, cfg, srv.URL)

	w, _ := doJSON(t, newRouter(h), http.MethodPost, "/v1/intake", gin.H{
		"text":   "buy milk",
		"config": "tasks",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.collectionID != "db-tasks" {
		t.Fatalf("config name not resolved, got collection %q", store.collectionID)
	}
	if !strings.Contains(gen.prompt, "Be terse.") {
		t.Fatal("config entry system prompt missing from extraction prompt")
	}
}

func TestIntakeRejectsUnknownConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	cfg := &config.Config{DocstoreConfigDBID: "cfg-db"}
	h := newTestHandler(t, &fakeStore{fields: taskFields()}, &fakeGenerator{content: "{}"}, cfg, srv.URL)

	w, resp := doJSON(t, newRouter(h), http.MethodPost, "/v1/intake", gin.H{
		"text":   "buy milk",
		"config": "nonexistent",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	errInfo := resp["error"].(map[string]any)
	if errInfo["code"] != "invalid_request" {
		t.Fatalf("unexpected error code %v", errInfo["code"])
	}
}

func TestIntakeMapsNotACollection(t *testing.T) {
	store := &fakeStore{schemaErr: &docstore.NotACollectionError{ID: "page-1"}}
	h := newTestHandler(t, store, &fakeGenerator{content: "{}"}, &config.Config{}, "http://unused.invalid")

	w, resp := doJSON(t, newRouter(h), http.MethodPost, "/v1/intake", gin.H{
		"text":          "buy milk",
		"collection_id": "page-1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	errInfo := resp["error"].(map[string]any)
	if errInfo["code"] != "not_a_collection" {
		t.Fatalf("unexpected error code %v", errInfo["code"])
	}
}

func TestChatWithoutCollectionUsesPageSchema(t *testing.T) {
	gen := &fakeGenerator{content: `{"message": "Saved a note.", "properties": {"Title": "Note"}}`}
	h := newTestHandler(t, &fakeStore{}, gen, &config.Config{}, "http://unused.invalid")

	w, resp := doJSON(t, newRouter(h), http.MethodPost, "/v1/chat", gin.H{"text": "jot this down"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := resp["data"].(map[string]any)
	if data["message"] != "Saved a note." {
		t.Fatalf("unexpected message %v", data["message"])
	}
	if !strings.Contains(gen.prompt, "Title") || !strings.Contains(gen.prompt, "Content") {
		t.Fatal("default page schema missing from chat prompt")
	}
}

func TestChatRequiresTextOrImage(t *testing.T) {
	h := newTestHandler(t, &fakeStore{}, &fakeGenerator{content: "{}"}, &config.Config{}, "http://unused.invalid")

	w, _ := doJSON(t, newRouter(h), http.MethodPost, "/v1/chat", gin.H{"history": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestModelsReturnsCredentialedSubset(t *testing.T) {
	cfg := &config.Config{
		OpenAIAPIKey:           "k",
		DefaultTextModel:       "openai/gpt-4o-mini",
		DefaultMultimodalModel: "openai/gpt-4o-mini",
	}
	h := newTestHandler(t, &fakeStore{}, &fakeGenerator{}, cfg, "http://unused.invalid")

	w, resp := doJSON(t, newRouter(h), http.MethodGet, "/v1/models", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := resp["data"].(map[string]any)
	models := data["models"].([]any)
	if len(models) != 1 {
		t.Fatalf("expected only credentialed models, got %d", len(models))
	}
	first := models[0].(map[string]any)
	if first["id"] != "openai/gpt-4o-mini" {
		t.Fatalf("unexpected model %v", first["id"])
	}
	if data["default_text"] != "openai/gpt-4o-mini" {
		t.Fatalf("unexpected default %v", data["default_text"])
	}
}

func TestConfigsEmptyWhenUnconfigured(t *testing.T) {
	h := newTestHandler(t, &fakeStore{}, &fakeGenerator{}, &config.Config{}, "http://unused.invalid")

	w, resp := doJSON(t, newRouter(h), http.MethodGet, "/v1/configs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := resp["data"].(map[string]any)
	if configs := data["configs"].([]any); len(configs) != 0 {
		t.Fatalf("expected empty configs, got %v", configs)
	}
}
