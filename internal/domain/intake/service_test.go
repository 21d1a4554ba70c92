package intake

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	decimal "github.com/shopspring/decimal"

	"scribe-server/internal/domain/schema"
	"scribe-server/internal/infrastructure/docstore"
	"scribe-server/internal/infrastructure/llmclient"
	"scribe-server/internal/infrastructure/logger"
)

type fakeStore struct {
	fields       schema.Schema
	schemaErr    error
	examples     []docstore.Record
	examplesErr  error
	created      schema.Properties
	createErr    error
	appendedID   string
	appendedText string
	appendErr    error
}

func (f *fakeStore) GetSchema(ctx context.Context, id string) (schema.Schema, error) {
	return f.fields, f.schemaErr
}

func (f *fakeStore) ListExamples(ctx context.Context, id string) ([]docstore.Record, error) {
	return f.examples, f.examplesErr
}

func (f *fakeStore) CreateRecord(ctx context.Context, id string, properties schema.Properties) (*docstore.CreatedRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = properties
	return &docstore.CreatedRecord{ID: "page-1", URL: "https://store.example/p/page-1"}, nil
}

func (f *fakeStore) AppendContent(ctx context.Context, id, text string) error {
	f.appendedID = id
	f.appendedText = text
	return f.appendErr
}

type fakeGenerator struct {
	content string
	prompt  string
	parts   []openai.ChatMessagePart
	model   string
	err     error
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, modelID, promptText string, parts []openai.ChatMessagePart) (*llmclient.Result, error) {
	f.model = modelID
	f.prompt = promptText
	f.parts = parts
	if f.err != nil {
		return nil, f.err
	}
	return &llmclient.Result{
		Content: f.content,
		Usage:   openai.Usage{PromptTokens: 10, CompletionTokens: 5},
		Cost:    decimal.NewFromFloat(0.001),
		Model:   modelID,
	}, nil
}

type fakePicker struct {
	model    string
	err      error
	hasImage bool
}

func (f *fakePicker) Select(hasImage bool, userChoice string) (string, error) {
	f.hasImage = hasImage
	if f.err != nil {
		return "", f.err
	}
	if userChoice != "" {
		return userChoice, nil
	}
	return f.model, nil
}

func taskFields() schema.Schema {
	return schema.Schema{
		"Name":   {Name: "Name", Type: schema.TypeTitle},
		"Status": {Name: "Status", Type: schema.TypeSelect, Options: []schema.Option{{Name: "Open"}}},
	}
}

func newTestService(store *fakeStore, gen *fakeGenerator, picker *fakePicker) *Service {
	return NewService(store, gen, picker, logger.GetLogger())
}

func TestAnalyze(t *testing.T) {
	gen := &fakeGenerator{content: `{"Name": "Buy milk", "Status": "Open"}`}
	svc := newTestService(&fakeStore{}, gen, &fakePicker{model: "gemini/gemini-2.0-flash-exp"})

	result, err := svc.Analyze(context.Background(), "buy milk", taskFields(), nil, "Extract a task.", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Properties) != 2 {
		t.Fatalf("expected 2 properties, got %v", result.Properties)
	}
	if result.Model != "gemini/gemini-2.0-flash-exp" {
		t.Fatalf("unexpected model %q", result.Model)
	}
	if !strings.Contains(gen.prompt, "Extract a task.") || !strings.Contains(gen.prompt, "buy milk") {
		t.Fatalf("prompt missing inputs:\n%s", gen.prompt)
	}
}

func TestAnalyzeFallbackOnGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	svc := newTestService(&fakeStore{}, gen, &fakePicker{model: "m"})

	result, err := svc.Analyze(context.Background(), "remember this", taskFields(), nil, "sys", "")
	if err != nil {
		t.Fatalf("generation failure must not surface: %v", err)
	}
	if result.Err == "" {
		t.Fatal("expected error recorded on fallback result")
	}
	title, ok := result.Properties["Name"].(schema.TitleValue)
	if !ok || title.Text != "remember this" {
		t.Fatalf("expected input preserved in title, got %v", result.Properties)
	}
}

func TestAnalyzeModelSelectionFailureIsFatal(t *testing.T) {
	picker := &fakePicker{err: errors.New("no models")}
	svc := newTestService(&fakeStore{}, &fakeGenerator{}, picker)

	if _, err := svc.Analyze(context.Background(), "x", taskFields(), nil, "sys", ""); err == nil {
		t.Fatal("expected selection failure to surface")
	}
}

func TestChatAnalyzeWithImage(t *testing.T) {
	gen := &fakeGenerator{content: `{"message": "I see a receipt."}`}
	picker := &fakePicker{model: "gemini/gemini-2.0-flash-exp"}
	svc := newTestService(&fakeStore{}, gen, picker)

	result, err := svc.ChatAnalyze(context.Background(), ChatRequest{
		Text:         "what is this",
		Fields:       taskFields(),
		SystemPrompt: "Assist.",
		ImageData:    "QUJD",
		ImageMIME:    "image/png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "I see a receipt." {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if !picker.hasImage {
		t.Fatal("image must drive vision model selection")
	}
	if len(gen.parts) != 2 {
		t.Fatalf("expected multimodal parts, got %d", len(gen.parts))
	}
	if !strings.Contains(gen.parts[0].Text, "attached an image") {
		t.Fatal("expected image grounding instruction in text part")
	}
}

func TestChatAnalyzeTextOnly(t *testing.T) {
	gen := &fakeGenerator{content: `{"Name": "Buy milk"}`}
	svc := newTestService(&fakeStore{}, gen, &fakePicker{model: "m"})

	result, err := svc.ChatAnalyze(context.Background(), ChatRequest{
		Text: "save: buy milk", Fields: taskFields(), SystemPrompt: "Assist.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.parts != nil {
		t.Fatal("text-only request must not carry content parts")
	}
	if _, ok := result.Properties["Name"]; !ok {
		t.Fatalf("expected lifted properties, got %v", result.Properties)
	}
	if result.Message == "" {
		t.Fatal("message must be synthesized")
	}
}

func TestProcessIntake(t *testing.T) {
	store := &fakeStore{
		fields: taskFields(),
		examples: []docstore.Record{
			{"Name": json.RawMessage(`{"type":"title","title":[{"plain_text":"Old task"}]}`)},
		},
	}
	gen := &fakeGenerator{content: `{"Name": "Buy milk", "Status": "Open"}`}
	svc := newTestService(store, gen, &fakePicker{model: "m"})

	result, err := svc.ProcessIntake(context.Background(), IntakeRequest{
		Text:         "buy milk\nwith extra notes",
		CollectionID: "db-1",
		SystemPrompt: "Extract.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.URL != "https://store.example/p/page-1" {
		t.Fatalf("unexpected url %q", result.URL)
	}
	if store.appendedID != "page-1" {
		t.Fatalf("content must append to the created record, got %q", store.appendedID)
	}
	if !strings.Contains(gen.prompt, "Old task") {
		t.Fatalf("examples must ground the prompt:\n%s", gen.prompt)
	}
}

func TestProcessIntakeTitleGuarantee(t *testing.T) {
	store := &fakeStore{fields: taskFields()}
	gen := &fakeGenerator{content: `{"Status": "Open"}`}
	svc := newTestService(store, gen, &fakePicker{model: "m"})

	_, err := svc.ProcessIntake(context.Background(), IntakeRequest{
		Text: "first line\nsecond line", CollectionID: "db-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	title, ok := store.created["Name"].(schema.TitleValue)
	if !ok {
		t.Fatalf("expected synthesized title, got %v", store.created)
	}
	if title.Text != "first line" {
		t.Fatalf("title must be the first input line, got %q", title.Text)
	}
}

func TestProcessIntakeAppendFailureIsWarning(t *testing.T) {
	store := &fakeStore{fields: taskFields(), appendErr: errors.New("batch failed")}
	gen := &fakeGenerator{content: `{"Name": "x"}`}
	svc := newTestService(store, gen, &fakePicker{model: "m"})

	result, err := svc.ProcessIntake(context.Background(), IntakeRequest{Text: "x", CollectionID: "db-1"})
	if err != nil {
		t.Fatalf("append failure must not fail the request: %v", err)
	}
	if result.Warning == "" {
		t.Fatal("expected warning recorded")
	}
}

func TestProcessIntakeSchemaFailureIsFatal(t *testing.T) {
	store := &fakeStore{schemaErr: &docstore.NotACollectionError{ID: "db-1"}}
	svc := newTestService(store, &fakeGenerator{}, &fakePicker{model: "m"})

	if _, err := svc.ProcessIntake(context.Background(), IntakeRequest{Text: "x", CollectionID: "db-1"}); err == nil {
		t.Fatal("expected schema failure to surface")
	}
}
