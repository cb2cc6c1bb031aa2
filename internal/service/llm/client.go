package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/logger"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultRetryMax     = 2
	defaultRetryWaitMin = 200 * time.Millisecond
	defaultRetryWaitMax = 2 * time.Second

	// Upstream answers bigger than that are treated as broken
	maxResponseSize = 4 << 20
)

type outcomeCounter interface {
	LLMRequest(outcome string)
}

type Config struct {
	// Base URL of the LLM service, e.g. http://llm:8000
	Origin string

	// Sent as bearer token to the LLM service
	APIKey string

	Timeout  time.Duration
	RetryMax int
}

type Client struct {
	origin string
	apiKey string

	client  *retryablehttp.Client
	timeout time.Duration
	counter outcomeCounter
	logger  logger.Logger
}

func NewClient(cfg Config, l logger.Logger, counter outcomeCounter) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = defaultRetryMax
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = defaultRetryWaitMin
	rc.RetryWaitMax = defaultRetryWaitMax
	rc.Logger = l
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = retryOnConnError

	return &Client{
		origin:  strings.TrimRight(cfg.Origin, "/"),
		apiKey:  cfg.APIKey,
		client:  rc,
		timeout: cfg.Timeout,
		counter: counter,
		logger:  l,
	}
}

// Generation is not idempotent and is billed upstream, so any response ends the attempts
// Only transport failures are retried
func retryOnConnError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Ask LLM service to generate answer for the prompt
// Any upstream failure is reported as apperrors.ErrLLMUnavailable
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("prompt", prompt)
	q.Set("max_tokens", strconv.Itoa(maxTokens))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.origin+"/generate?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.counter.LLMRequest("error")
		c.logger.Error("LLM request failed", "error", err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrLLMUnavailable, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.counter.LLMRequest("error")
		return nil, fmt.Errorf("%w: failed to read response: %w", apperrors.ErrLLMUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.counter.LLMRequest("bad_status")
		c.logger.Warn("LLM service returned error", "status_code", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: unexpected status code %d", apperrors.ErrLLMUnavailable, resp.StatusCode)
	}

	if !json.Valid(body) {
		c.counter.LLMRequest("bad_body")
		c.logger.Warn("LLM service returned invalid json")
		return nil, fmt.Errorf("%w: invalid json in response", apperrors.ErrLLMUnavailable)
	}

	c.counter.LLMRequest("ok")
	return json.RawMessage(body), nil
}
