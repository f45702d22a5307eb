package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	if status := domain.UpstreamStatus(err); status >= 400 {
		return status
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}

	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrStageBusy),
		domain.IsKind(err, domain.ErrPrecondition),
		domain.IsKind(err, domain.ErrSuperseded):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrFormat),
		domain.IsKind(err, domain.ErrEmptyResponse),
		domain.IsKind(err, domain.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// relayOutcome is the metrics label for a relay result.
func relayOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsKind(err, domain.ErrConfig):
		return "config_error"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrEmptyResponse):
		return "empty_response"
	case domain.IsKind(err, domain.ErrTransport):
		return "upstream_error"
	default:
		return "error"
	}
}
