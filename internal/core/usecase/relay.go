package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/scanscribe/internal/core/domain"
	"github.com/kirillkom/scanscribe/internal/core/ports"
)

const msgKeyNotConfigured = "API key is not configured on the server."

// RelayUseCase forwards one generation envelope to the model endpoint.
// It keeps no state between calls.
type RelayUseCase struct {
	model ports.ModelClient
}

func NewRelayUseCase(model ports.ModelClient) *RelayUseCase {
	return &RelayUseCase{model: model}
}

// Ready reports the configuration error every relay call would fail with,
// or nil when the upstream key is set.
func (uc *RelayUseCase) Ready() error {
	if uc.model == nil || !uc.model.Configured() {
		return &domain.MessageError{Kind: domain.ErrConfig, Message: msgKeyNotConfigured}
	}
	return nil
}

func (uc *RelayUseCase) Relay(ctx context.Context, req domain.GenerationRequest) (*domain.GenerateResponse, error) {
	if err := uc.Ready(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	upstream, err := req.Upstream()
	if err != nil {
		return nil, err
	}

	resp, err := uc.model.Generate(ctx, upstream)
	if err != nil {
		slog.Warn("relay_upstream_error",
			"status", domain.UpstreamStatus(err),
			"needs_search", req.NeedsSearch,
			"error", err.Error(),
		)
		return nil, err
	}
	if !resp.HasContent() {
		return nil, resp.EmptyResponseError()
	}
	return resp, nil
}

// RelayCompleter runs prompts through an in-process relay.
type RelayCompleter struct {
	relay ports.Relay
}

func NewRelayCompleter(relay ports.Relay) *RelayCompleter {
	return &RelayCompleter{relay: relay}
}

func (c *RelayCompleter) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	resp, err := c.relay.Relay(ctx, prompt.Request())
	if err != nil {
		return "", err
	}
	return resp.Text()
}
