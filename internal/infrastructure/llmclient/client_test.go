package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	decimal "github.com/shopspring/decimal"

	"scribe-server/internal/domain/model"
	"scribe-server/internal/infrastructure/logger"
)

type fakeKeys map[string]string

func (f fakeKeys) APIKeyForProvider(provider string) string { return f[provider] }

type availAll struct{}

func (availAll) IsProviderAvailable(string) bool { return true }

func testClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	catalog := []model.Descriptor{
		{
			ID:              "openai/gpt-4o-mini",
			Name:            "gpt-4o-mini",
			Provider:        "openai",
			InputCostPer1K:  decimal.NewFromFloat(0.001),
			OutputCostPer1K: decimal.NewFromFloat(0.002),
		},
	}
	registry := model.NewRegistry(catalog, availAll{})
	c := NewClient(fakeKeys{"openai": "sk-test"}, registry, 5*time.Second, retries, logger.GetLogger())
	c.SetBaseURL(url)
	return c
}

func completionResponse(content string) string {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}},
		},
		Usage: openai.Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestGenerateJSON(t *testing.T) {
	var gotReq openai.ChatCompletionRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse(`{"Title": "x"}`)))
	}))
	defer srv.Close()

	result, err := testClient(t, srv.URL, 0).GenerateJSON(context.Background(), "openai/gpt-4o-mini", "extract this", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != `{"Title": "x"}` {
		t.Fatalf("unexpected content %q", result.Content)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Fatalf("provider prefix must be stripped, got %q", gotReq.Model)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatalf("expected json_object response format, got %+v", gotReq.ResponseFormat)
	}
	if gotReq.Messages[0].Content != "extract this" {
		t.Fatalf("unexpected prompt %q", gotReq.Messages[0].Content)
	}

	// 1000 prompt tokens at 0.001/1K plus 500 completion at 0.002/1K.
	if want := decimal.NewFromFloat(0.002); !result.Cost.Equal(want) {
		t.Fatalf("expected cost %s, got %s", want, result.Cost)
	}
}

func TestGenerateJSONMultimodal(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse(`{}`)))
	}))
	defer srv.Close()

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: "look"},
		{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: "data:image/png;base64,QUJD"},
		},
	}
	_, err := testClient(t, srv.URL, 0).GenerateJSON(context.Background(), "openai/gpt-4o-mini", "", parts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages := raw["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	if len(content) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(content))
	}
	if content[0].(map[string]any)["type"] != "text" {
		t.Fatalf("text part must come first, got %v", content[0])
	}
}

func TestGenerateJSONRetriesThenFails(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 1).GenerateJSON(context.Background(), "openai/gpt-4o-mini", "x", nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestGenerateJSONMissingKey(t *testing.T) {
	registry := model.NewRegistry(nil, availAll{})
	c := NewClient(fakeKeys{}, registry, time.Second, 0, logger.GetLogger())
	if _, err := c.GenerateJSON(context.Background(), "openai/gpt-4o-mini", "x", nil); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestGenerateJSONEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := testClient(t, srv.URL, 0).GenerateJSON(context.Background(), "openai/gpt-4o-mini", "x", nil); err == nil {
		t.Fatal("expected error for empty completion")
	}
}
