package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"scribe-server/internal/infrastructure/logger"
	"scribe-server/internal/infrastructure/metrics"
	"scribe-server/internal/utils/httpclients"

	"resty.dev/v3"
)

const (
	versionHeader     = "Notion-Version"
	minRequestSpacing = 350 * time.Millisecond
	defaultRetryAfter = 2 * time.Second
)

// Config carries the connection settings for the document-store API.
type Config struct {
	BaseURL     string
	Token       string
	Version     string
	Timeout     time.Duration // per attempt
	BulkTimeout time.Duration // per attempt, bulk queries
	MaxRetries  int
}

// Client executes document-store API calls with rate-limit handling,
// exponential backoff and selective error suppression.
type Client struct {
	http  *resty.Client
	cfg   Config
	pacer *pacer
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BulkTimeout == 0 {
		cfg.BulkTimeout = 60 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	return &Client{
		http:  httpclients.NewClient("DocstoreClient"),
		cfg:   cfg,
		pacer: newPacer(minRequestSpacing),
	}
}

type callOptions struct {
	ignoreStatuses []int
	timeout        time.Duration
	maxRetries     int
}

type CallOption func(*callOptions)

// WithIgnoreStatuses suppresses the listed HTTP statuses: the call returns a
// nil payload instead of an error. Used by callers probing whether an id
// refers to a different resource kind.
func WithIgnoreStatuses(statuses ...int) CallOption {
	return func(o *callOptions) { o.ignoreStatuses = statuses }
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithMaxRetries overrides the attempt budget.
func WithMaxRetries(n int) CallOption {
	return func(o *callOptions) { o.maxRetries = n }
}

// Call executes one API call against the store. Rate-limit responses are
// retried without consuming the attempt budget; timeouts, connection errors
// and 5xx responses are retried with exponential backoff until the budget is
// exhausted, which surfaces as RemoteUnavailableError. Other 4xx responses
// fail immediately as RemoteRejectedError unless suppressed via
// WithIgnoreStatuses, in which case the call returns (nil, nil).
func (c *Client) Call(ctx context.Context, method, endpoint string, body any, opts ...CallOption) (json.RawMessage, error) {
	options := callOptions{timeout: c.cfg.Timeout, maxRetries: c.cfg.MaxRetries}
	for _, opt := range opts {
		opt(&options)
	}

	log := logger.GetLogger()
	sm := newRetryMachine(options.maxRetries)

	for {
		sm.observe(eventAttempt)
		if err := c.pacer.wait(ctx); err != nil {
			return nil, err
		}

		payload, status, retryAfter, err := c.attempt(ctx, method, endpoint, body, options.timeout)

		switch {
		case err != nil:
			if sm.failed(err) == stateExhausted {
				metrics.RecordDocstoreRequest(endpoint, "unavailable")
				return nil, &RemoteUnavailableError{Endpoint: endpoint, Attempts: sm.attempts, Err: err}
			}
			metrics.RecordDocstoreRetry(endpoint, "timeout")
			log.Warn().
				Err(err).
				Str("endpoint", endpoint).
				Int("attempt", sm.attempts).
				Dur("backoff", sm.delay).
				Msg("docstore request failed, retrying")
			if err := sleepCtx(ctx, sm.delay); err != nil {
				return nil, err
			}

		case status == 429:
			sm.rateLimited(retryAfter)
			metrics.RecordDocstoreRetry(endpoint, "rate_limit")
			log.Warn().
				Str("endpoint", endpoint).
				Dur("retry_after", retryAfter).
				Msg("docstore rate limited, waiting")
			if err := sleepCtx(ctx, retryAfter); err != nil {
				return nil, err
			}

		case status >= 500:
			serverErr := fmt.Errorf("server error: status %d", status)
			if sm.failed(serverErr) == stateExhausted {
				metrics.RecordDocstoreRequest(endpoint, "unavailable")
				return nil, &RemoteUnavailableError{Endpoint: endpoint, Attempts: sm.attempts, Err: serverErr}
			}
			metrics.RecordDocstoreRetry(endpoint, "server_error")
			log.Warn().
				Int("status", status).
				Str("endpoint", endpoint).
				Int("attempt", sm.attempts).
				Dur("backoff", sm.delay).
				Msg("docstore server error, retrying")
			if err := sleepCtx(ctx, sm.delay); err != nil {
				return nil, err
			}

		case status >= 400:
			if containsStatus(options.ignoreStatuses, status) {
				metrics.RecordDocstoreRequest(endpoint, "ignored")
				return nil, nil
			}
			metrics.RecordDocstoreRequest(endpoint, "rejected")
			return nil, &RemoteRejectedError{Endpoint: endpoint, Status: status, Body: string(payload)}

		default:
			sm.observe(eventResolved)
			metrics.RecordDocstoreRequest(endpoint, "ok")
			return payload, nil
		}
	}
}

// attempt executes one HTTP request with its own timeout budget.
func (c *Client) attempt(ctx context.Context, method, endpoint string, body any, timeout time.Duration) (json.RawMessage, int, time.Duration, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.http.R().
		SetContext(attemptCtx).
		SetHeader("Authorization", "Bearer "+c.cfg.Token).
		SetHeader(versionHeader, c.cfg.Version).
		SetHeader("Content-Type", "application/json").
		SetDoNotParseResponse(true)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, c.cfg.BaseURL+"/"+endpoint)
	if err != nil {
		return nil, 0, 0, err
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return nil, resp.StatusCode(), 0, fmt.Errorf("empty response body")
	}
	defer resp.RawResponse.Body.Close()

	payload, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil {
		return nil, 0, 0, err
	}

	retryAfter := parseRetryAfter(resp.RawResponse.Header.Get("Retry-After"))
	return payload, resp.StatusCode(), retryAfter, nil
}

func parseRetryAfter(raw string) time.Duration {
	if raw == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func containsStatus(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
