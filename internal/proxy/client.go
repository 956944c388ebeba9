package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the OpenAI API. OpenRouter and local OpenAI-compatible
	// servers work by pointing the base URL elsewhere.
	DefaultBaseURL = "https://api.openai.com/v1"
	OpenRouterURL  = "https://openrouter.ai/api/v1"

	defaultTimeout = 60 * time.Second
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
	maxRetryWait   = 10 * time.Second
	errBodyLimit   = 4096
)

// ErrRateLimited is wrapped by the error Complete returns once every attempt
// was answered with HTTP 429.
var ErrRateLimited = errors.New("rate limited")

// StatusError is a non-200 answer. Message and Type come from the
// OpenAI-style {"error": {...}} body when present, else Message is the raw body.
type StatusError struct {
	Status  int
	Message string
	Type    string

	retryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Message)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a client for the OpenAI API.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		backoff:    initialBackoff,
	}
}

// NewClientWithBaseURL creates a client for any OpenAI-compatible server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

// Complete sends a non-streaming chat completion and returns the text of the
// first choice. HTTP 429 is retried, waiting for Retry-After when the server
// sends one and doubling the backoff otherwise.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	req.Stream = false

	wait := c.backoff
	for attempt := 1; ; attempt++ {
		var out CompletionResponse
		err := c.do(ctx, http.MethodPost, "/chat/completions", req, &out)
		if err == nil {
			if len(out.Choices) == 0 {
				return "", errors.New("completion has no choices")
			}
			return out.Choices[0].Message.Content, nil
		}

		var se *StatusError
		if !errors.As(err, &se) || se.Status != http.StatusTooManyRequests {
			return "", err
		}
		if attempt == maxAttempts {
			return "", fmt.Errorf("%w after %d attempts: %w", ErrRateLimited, attempt, err)
		}

		pause := wait
		if se.retryAfter > 0 {
			pause = min(se.retryAfter, maxRetryWait)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pause):
		}
		wait *= 2
	}
}

// ListModels returns the models the endpoint advertises.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var list ModelList
	if err := c.do(ctx, http.MethodGet, "/models", nil, &list); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	if list.Data == nil {
		return []Model{}, nil
	}
	return list.Data, nil
}

// do sends in as JSON (when non-nil) and decodes a 200 reply into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func statusError(resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	se := &StatusError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		se.Message, se.Type = envelope.Error.Message, envelope.Error.Type
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		se.retryAfter = time.Duration(secs) * time.Second
	}
	return se
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if strings.HasPrefix(c.baseURL, OpenRouterURL) {
		// OpenRouter attributes traffic by these two headers.
		req.Header.Set("HTTP-Referer", "https://github.com/kalambet/sakha")
		req.Header.Set("X-Title", "sakha")
	}
}
