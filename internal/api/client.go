// Package api is the HTTP client for the Market View backend REST API.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mselser95/marketview/pkg/types"
)

// TokenSource supplies the bearer token attached to authenticated requests.
// An empty token means the request is sent without Authorization.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token() string {
	return string(s)
}

// Config holds the client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // Requests per second
	RateBurst int
	Tokens    TokenSource
	Logger    *zap.Logger
}

// Client talks to the backend REST API. Every response is wrapped in the
// {success, data, error} envelope.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     TokenSource
	logger     *zap.Logger
}

// New creates a new backend client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	tokens := cfg.Tokens
	if tokens == nil {
		tokens = StaticToken("")
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		tokens:  tokens,
		logger:  cfg.Logger,
	}, nil
}

// SetTokenSource replaces the token source. It must be called before the
// client is shared between goroutines.
func (c *Client) SetTokenSource(tokens TokenSource) {
	if tokens == nil {
		tokens = StaticToken("")
	}
	c.tokens = tokens
}

// envelope is the response wrapper used by every backend endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// do sends a request and decodes the envelope's data into out. The route
// argument is a low-cardinality label used for metrics.
func (c *Client) do(ctx context.Context, method, route, path string, body, out any) error {
	start := time.Now()

	err := c.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("marshal body: %w", marshalErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "marketview/1.0")

	if method != http.MethodGet {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("api-request",
		zap.String("method", method),
		zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		RequestErrorsTotal.WithLabelValues(route, "network").Inc()
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	RequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		RequestErrorsTotal.WithLabelValues(route, "network").Inc()
		return fmt.Errorf("read response body: %w", err)
	}

	err = decodeEnvelope(resp.StatusCode, raw, out)
	if err != nil {
		RequestErrorsTotal.WithLabelValues(route, "backend").Inc()
		c.logger.Debug("api-request-failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return err
	}

	return nil
}

// decodeEnvelope converts an HTTP response into data or an *types.APIError.
func decodeEnvelope(status int, raw []byte, out any) error {
	var env envelope

	err := json.Unmarshal(raw, &env)
	if err != nil {
		// Non-JSON bodies (proxy error pages and the like) are still backend failures.
		return &types.APIError{Status: status, Message: types.DefaultErrorMessage}
	}

	if status < 200 || status >= 300 || !env.Success {
		apiErr := &types.APIError{Status: status, Message: types.DefaultErrorMessage}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			if env.Error.Message != "" {
				apiErr.Message = env.Error.Message
			}
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}

	err = json.Unmarshal(env.Data, out)
	if err != nil {
		return fmt.Errorf("unmarshal response data: %w", err)
	}

	return nil
}
