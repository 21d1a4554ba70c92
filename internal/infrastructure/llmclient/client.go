package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	decimal "github.com/shopspring/decimal"
	"resty.dev/v3"

	"scribe-server/internal/domain/model"
	"scribe-server/internal/infrastructure/metrics"
	"scribe-server/internal/utils/httpclients"
	"scribe-server/internal/utils/platformerrors"
)

// KeySource resolves the API key for a canonical provider id.
type KeySource interface {
	APIKeyForProvider(provider string) string
}

// Result is what one JSON generation yields: the raw completion content plus
// accounting metadata.
type Result struct {
	Content string          `json:"content"`
	Usage   openai.Usage    `json:"usage"`
	Cost    decimal.Decimal `json:"cost"`
	Model   string          `json:"model"`
}

// Client invokes chat-completion providers through their OpenAI-compatible
// endpoints and requires JSON-only output.
type Client struct {
	http       *resty.Client
	keys       KeySource
	registry   *model.Registry
	timeout    time.Duration
	maxRetries int
	baseURL    string
	log        zerolog.Logger
}

func NewClient(keys KeySource, registry *model.Registry, timeout time.Duration, maxRetries int, log zerolog.Logger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		http:       httpclients.NewClient("LLMClient"),
		keys:       keys,
		registry:   registry,
		timeout:    timeout,
		maxRetries: maxRetries,
		log:        log.With().Str("component", "llm-client").Logger(),
	}
}

// SetBaseURL routes every provider through one gateway URL instead of the
// per-provider defaults.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

func (c *Client) endpoint(provider string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return providerBaseURL(provider)
}

// providerBaseURL maps a canonical provider id to its OpenAI-compatible API
// root.
func providerBaseURL(provider string) string {
	switch provider {
	case "gemini":
		return "https://generativelanguage.googleapis.com/v1beta/openai"
	case "anthropic":
		return "https://api.anthropic.com/v1"
	default:
		return "https://api.openai.com/v1"
	}
}

// splitModelID separates the routing prefix from the provider-facing model
// name, e.g. "gemini/gemini-1.5-flash" routes to gemini as
// "gemini-1.5-flash".
func splitModelID(id string) (provider, name string) {
	if idx := strings.Index(id, "/"); idx >= 0 {
		return id[:idx], id[idx+1:]
	}
	return "openai", id
}

// GenerateJSON requests a JSON-only completion from the model's provider.
// Either prompt or parts is used as the user message: parts carries the
// multimodal form when an image is attached. Transient failures are retried
// with a linear backoff until the attempt budget is spent.
func (c *Client) GenerateJSON(ctx context.Context, modelID, prompt string, parts []openai.ChatMessagePart) (*Result, error) {
	provider, name := splitModelID(modelID)
	apiKey := c.keys.APIKeyForProvider(provider)
	if apiKey == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("no API key configured for provider %s", provider), nil)
	}

	message := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(parts) > 0 {
		message.MultiContent = parts
	} else {
		message.Content = prompt
	}
	request := openai.ChatCompletionRequest{
		Model:    name,
		Messages: []openai.ChatCompletionMessage{message},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(2*attempt) * time.Second
			c.log.Warn().
				Err(lastErr).
				Str("model", modelID).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("json generation failed, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.complete(ctx, provider, apiKey, modelID, request)
		if err == nil {
			return result, nil
		}
		lastErr = err
		metrics.RecordProviderError(provider, "completion")
	}

	return nil, platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, lastErr, "json generation failed")
}

func (c *Client) complete(ctx context.Context, provider, apiKey, modelID string, request openai.ChatCompletionRequest) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var respBody openai.ChatCompletionResponse
	resp, err := c.http.R().
		SetContext(attemptCtx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+apiKey).
		SetBody(request).
		SetResult(&respBody).
		Post(c.endpoint(provider) + "/chat/completions")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("provider %s returned status %d", provider, resp.StatusCode())
	}
	metrics.LLMDuration.WithLabelValues(modelID, provider).Observe(time.Since(start).Seconds())

	if len(respBody.Choices) == 0 || respBody.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty completion from provider %s", provider)
	}

	metrics.RecordTokens(modelID, provider, respBody.Usage.PromptTokens, respBody.Usage.CompletionTokens)
	return &Result{
		Content: respBody.Choices[0].Message.Content,
		Usage:   respBody.Usage,
		Cost:    c.estimateCost(modelID, respBody.Usage),
		Model:   modelID,
	}, nil
}

// estimateCost prices the usage against the catalog's per-1K token rates.
// Unknown models cost zero rather than failing the request.
func (c *Client) estimateCost(modelID string, usage openai.Usage) decimal.Decimal {
	meta, ok := c.registry.Lookup(modelID)
	if !ok {
		return decimal.Zero
	}
	thousand := decimal.NewFromInt(1000)
	in := meta.InputCostPer1K.Mul(decimal.NewFromInt(int64(usage.PromptTokens))).Div(thousand)
	out := meta.OutputCostPer1K.Mul(decimal.NewFromInt(int64(usage.CompletionTokens))).Div(thousand)
	return in.Add(out)
}
