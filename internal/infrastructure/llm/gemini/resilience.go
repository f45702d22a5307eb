package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/scanscribe/internal/core/domain"
	"github.com/kirillkom/scanscribe/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx answer from the model endpoint.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "gemini status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("gemini generate status: %s", e.Status)
	}
	return fmt.Sprintf("gemini generate status: %s: %s", e.Status, e.Body)
}

// TransportError is a failure to reach the model endpoint or read its answer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "gemini generate request: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// isBreakerFailure counts server-side and network failures against the
// breaker. Client errors and caller cancellation do not count.
func isBreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return isServerSideStatus(statusErr.StatusCode)
	}
	return true
}

func isServerSideStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500
	}
}

// toDomainError maps client failures onto the relay's error contract:
// upstream statuses pass through, everything else becomes a gateway error.
func toDomainError(err error) error {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return &domain.UpstreamError{
			StatusCode: statusErr.StatusCode,
			Message:    "Gemini API failed: " + statusErr.Body,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return &domain.UpstreamError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Gemini API is temporarily unavailable. Please try again later.",
		}
	}
	if errors.Is(err, context.Canceled) {
		return domain.WrapError(domain.ErrTransport, "gemini generate", err)
	}
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "Client.Timeout") {
		return &domain.UpstreamError{
			StatusCode: http.StatusGatewayTimeout,
			Message:    "Gemini API request timed out.",
		}
	}
	return &domain.UpstreamError{
		StatusCode: http.StatusBadGateway,
		Message:    "Gemini API request failed: " + msg,
	}
}
