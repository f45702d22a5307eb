package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

const (
	relayPath            = "/api/transcribe"
	maxResponseBodyBytes = 64 << 20
)

// Client is a Completer that talks to a relay over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	resp, err := c.Relay(ctx, prompt.Request())
	if err != nil {
		return "", err
	}
	return resp.Text()
}

// Relay posts one envelope and returns the upstream answer unchanged.
func (c *Client) Relay(ctx context.Context, envelope domain.GenerationRequest) (*domain.GenerateResponse, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+relayPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransport, "relay request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransport, "read relay response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, raw)
	}

	decoded, err := domain.DecodeGenerateResponse(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransport, "relay response", err)
	}
	return decoded, nil
}

// statusError surfaces the relay's {"error": "..."} text verbatim and
// falls back to the bare status.
func statusError(statusCode int, body []byte) error {
	var payload struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &domain.UpstreamError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("API request failed with status %d.", statusCode),
		}
	}
	if msg, ok := payload.Error.(string); ok && msg != "" {
		return &domain.UpstreamError{StatusCode: statusCode, Message: msg}
	}
	return &domain.UpstreamError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("API request failed with status %d", statusCode),
	}
}
