package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

const (
	maxErrorBodyBytes    = 64 << 10
	maxResponseBodyBytes = 64 << 20
)

func (c *Client) generateURL() string {
	return fmt.Sprintf("%s/models/%s:generateContent?%s",
		c.baseURL,
		url.PathEscape(c.model),
		url.Values{"key": {c.apiKey}}.Encode(),
	)
}

func (c *Client) postGenerate(ctx context.Context, payload domain.UpstreamRequest) (*domain.GenerateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: redactKey(err, c.apiKey)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPStatusError(resp)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read generate response: %w", err)}
	}
	decoded, err := domain.DecodeGenerateResponse(raw)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return decoded, nil
}

func newHTTPStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &HTTPStatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

// redactKey strips the API key from errors that echo the request URL.
// The original error stays reachable through errors.Is and errors.As.
func redactKey(err error, key string) error {
	if err == nil || key == "" {
		return err
	}
	msg := err.Error()
	redacted := strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
	redacted = strings.ReplaceAll(redacted, key, "REDACTED")
	if redacted == msg {
		return err
	}
	return &redactedError{msg: redacted, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }
