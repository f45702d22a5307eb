package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfig          = errors.New("configuration error")
	ErrTransport       = errors.New("transport failure")
	ErrEmptyResponse   = errors.New("empty model response")
	ErrFormat          = errors.New("unexpected response format")
	ErrEmptyResult     = errors.New("empty result")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPrecondition    = errors.New("precondition not met")
	ErrStageBusy       = errors.New("stage already running")
	ErrSessionNotFound = errors.New("session not found")
	ErrSuperseded      = errors.New("result superseded")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UpstreamError is a non-2xx answer from the model endpoint or the relay.
// Message is the human-readable text shown to users as-is.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "upstream error"
	}
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return ErrTransport
}

// UpstreamStatus returns the HTTP status carried by err, or 0.
func UpstreamStatus(err error) int {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.StatusCode
	}
	return 0
}

// MessageError is a failure whose text is meant for end users verbatim.
type MessageError struct {
	Kind    error
	Message string
}

func (e *MessageError) Error() string {
	return e.Message
}

func (e *MessageError) Unwrap() error {
	return e.Kind
}

// UserMessage returns the text to show for err without operation prefixes.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var msgErr *MessageError
	if errors.As(err, &msgErr) {
		return msgErr.Message
	}
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Error()
	}
	return err.Error()
}
