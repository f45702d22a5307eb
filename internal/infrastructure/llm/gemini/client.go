package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/scanscribe/internal/core/domain"
	"github.com/kirillkom/scanscribe/internal/infrastructure/resilience"
)

const generateOperation = "gemini_generate"

// Observer receives the outcome and latency of every upstream call.
type Observer interface {
	ObserveUpstream(outcome string, duration time.Duration)
}

// Client calls the generateContent REST endpoint. The API key is sent as
// a query parameter and never logged.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
	observer   Observer
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL, model, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      strings.TrimPrefix(strings.TrimSpace(model), "models/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.executor == nil {
		c.executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return c
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) Generate(ctx context.Context, req domain.UpstreamRequest) (*domain.GenerateResponse, error) {
	started := time.Now()

	var resp *domain.GenerateResponse
	err := c.executor.Execute(ctx, generateOperation, func(ctx context.Context) error {
		out, err := c.postGenerate(ctx, req)
		if err != nil {
			return err
		}
		resp = out
		return nil
	}, isBreakerFailure)

	c.observe(err, time.Since(started))
	if err != nil {
		return nil, toDomainError(err)
	}
	return resp, nil
}

func (c *Client) observe(err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	var statusErr *HTTPStatusError
	switch {
	case err == nil:
	case resilience.IsCircuitOpen(err):
		outcome = "circuit_open"
	case errors.As(err, &statusErr):
		outcome = "http_error"
	default:
		outcome = "network_error"
	}
	c.observer.ObserveUpstream(outcome, elapsed)
}
