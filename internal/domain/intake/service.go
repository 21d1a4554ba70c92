package intake

import (
	"context"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	decimal "github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"scribe-server/internal/domain/prompt"
	"scribe-server/internal/domain/reconcile"
	"scribe-server/internal/domain/schema"
	"scribe-server/internal/infrastructure/docstore"
	"scribe-server/internal/infrastructure/observability"
	"scribe-server/internal/infrastructure/llmclient"
	"scribe-server/internal/utils/functional"
)

// Store is the document-store surface the pipeline needs.
type Store interface {
	GetSchema(ctx context.Context, id string) (schema.Schema, error)
	ListExamples(ctx context.Context, id string) ([]docstore.Record, error)
	CreateRecord(ctx context.Context, id string, properties schema.Properties) (*docstore.CreatedRecord, error)
	AppendContent(ctx context.Context, id, text string) error
}

// Generator is the LLM invocation boundary.
type Generator interface {
	GenerateJSON(ctx context.Context, modelID, promptText string, parts []openai.ChatMessagePart) (*llmclient.Result, error)
}

// Picker resolves the model for a request.
type Picker interface {
	Select(hasImage bool, userChoice string) (string, error)
}

// Service runs the text-to-record pipeline: schema fetch, example fetch,
// model invocation, reconciliation, persistence. Each request is strictly
// sequential; concurrent requests are independent.
type Service struct {
	store  Store
	llm    Generator
	picker Picker
	log    zerolog.Logger
}

func NewService(store Store, llm Generator, picker Picker, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		llm:    llm,
		picker: picker,
		log:    log.With().Str("component", "intake").Logger(),
	}
}

// Schema fetches the target collection's field definitions.
func (s *Service) Schema(ctx context.Context, id string) (schema.Schema, error) {
	return s.store.GetSchema(ctx, id)
}

// AnalyzeResult is the outcome of one extraction. Err is set when the model
// call failed and Properties holds the synthesized fallback instead.
type AnalyzeResult struct {
	Properties schema.Properties `json:"properties"`
	Usage      openai.Usage      `json:"usage"`
	Cost       decimal.Decimal   `json:"cost"`
	Model      string            `json:"model"`
	Err        string            `json:"error,omitempty"`
}

// Analyze runs one-shot extraction: prompt the model with the schema, a few
// recent records and the input, then reconcile its output against the
// schema. A model-invocation failure degrades to a fallback record holding
// only the input text in the first title field, with the error recorded
// alongside. Only an unresolvable model selection is a hard error.
func (s *Service) Analyze(ctx context.Context, text string, fields schema.Schema, examples []map[string]any, systemPrompt, modelChoice string) (*AnalyzeResult, error) {
	selected, err := s.picker.Select(false, modelChoice)
	if err != nil {
		return nil, err
	}

	promptText := prompt.BuildExtraction(text, fields, examples, systemPrompt)
	result, err := s.llm.GenerateJSON(ctx, selected, promptText, nil)
	if err != nil {
		s.log.Error().Err(err).Str("model", selected).Msg("extraction failed, synthesizing fallback record")
		fallback := schema.Properties{}
		if field := fields.FirstTitleField(); field != "" {
			fallback[field] = schema.TitleValue{Text: text}
		}
		return &AnalyzeResult{
			Properties: fallback,
			Cost:       decimal.Zero,
			Model:      selected,
			Err:        err.Error(),
		}, nil
	}

	return &AnalyzeResult{
		Properties: reconcile.Reconcile(result.Content, fields),
		Usage:      result.Usage,
		Cost:       result.Cost,
		Model:      result.Model,
	}, nil
}

// ChatRequest is one conversational turn, optionally with an attached image
// as base64 data plus its MIME type.
type ChatRequest struct {
	Text         string
	Fields       schema.Schema
	SystemPrompt string
	History      []prompt.Turn
	ImageData    string
	ImageMIME    string
	Model        string
}

// ChatResult is the normalized conversational outcome with accounting.
type ChatResult struct {
	reconcile.ChatReply
	Usage openai.Usage    `json:"usage"`
	Cost  decimal.Decimal `json:"cost"`
	Model string          `json:"model"`
}

// ChatAnalyze runs one conversational turn. An attached image switches model
// selection to vision-capable candidates and packages the prompt as ordered
// text-then-image content parts.
func (s *Service) ChatAnalyze(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	ctx, span := observability.StartSpan(ctx, "intake", "intake.chat")
	defer span.End()

	hasImage := req.ImageData != "" && req.ImageMIME != ""
	observability.AddSpanAttributes(ctx, attribute.Bool("input.has_image", hasImage))
	selected, err := s.picker.Select(hasImage, req.Model)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, err
	}

	promptText := prompt.BuildChat(req.Text, req.Fields, req.SystemPrompt, req.History)
	var parts []openai.ChatMessagePart
	if hasImage {
		promptText = prompt.WithImageNotice(promptText)
		parts = prompt.MultimodalParts(promptText, req.ImageData, req.ImageMIME)
	}

	result, err := s.llm.GenerateJSON(ctx, selected, promptText, parts)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, err
	}

	return &ChatResult{
		ChatReply: reconcile.NormalizeChatReply(result.Content, req.Fields),
		Usage:     result.Usage,
		Cost:      result.Cost,
		Model:     result.Model,
	}, nil
}

// IntakeRequest is one full persist-from-text request against a target
// collection.
type IntakeRequest struct {
	Text         string
	CollectionID string
	SystemPrompt string
	Model        string
}

// IntakeResult reports where the record landed and what it cost.
type IntakeResult struct {
	URL        string            `json:"url"`
	Properties schema.Properties `json:"properties"`
	Usage      openai.Usage      `json:"usage"`
	Cost       decimal.Decimal   `json:"cost"`
	Model      string            `json:"model"`
	Warning    string            `json:"warning,omitempty"`
}

// ProcessIntake runs the whole pipeline for one input: fetch the collection
// schema, gather recent records as grounding, extract properties, sanitize
// and title-guarantee them, create the record and append the raw text as
// page content. A failed content append degrades to a warning since the
// record itself was already created.
func (s *Service) ProcessIntake(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	ctx, span := observability.StartSpan(ctx, "intake", "intake.process")
	defer span.End()
	observability.AddSpanAttributes(ctx, attribute.String("collection.id", req.CollectionID))

	fields, err := s.store.GetSchema(ctx, req.CollectionID)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, err
	}

	records, err := s.store.ListExamples(ctx, req.CollectionID)
	if err != nil {
		s.log.Warn().Err(err).Msg("example fetch failed, proceeding without grounding")
		records = nil
	}
	examples := functional.Map(records, func(r docstore.Record) map[string]any {
		return schema.FlattenRecord(r)
	})

	cleanText := SanitizeImageData(req.Text)
	analysis, err := s.Analyze(ctx, cleanText, fields, examples, req.SystemPrompt, req.Model)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, err
	}
	observability.AddSpanAttributes(ctx, attribute.String("model.id", analysis.Model))

	props := SanitizeProperties(analysis.Properties)
	props = EnsureTitle(props, fields, cleanText)

	created, err := s.store.CreateRecord(ctx, req.CollectionID, props)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, err
	}

	result := &IntakeResult{
		URL:        created.URL,
		Properties: props,
		Usage:      analysis.Usage,
		Cost:       analysis.Cost,
		Model:      analysis.Model,
		Warning:    analysis.Err,
	}
	if err := s.store.AppendContent(ctx, created.ID, cleanText); err != nil {
		s.log.Warn().Err(err).Str("url", created.URL).Msg("content append incomplete")
		if result.Warning == "" {
			result.Warning = err.Error()
		}
	}
	return result, nil
}
