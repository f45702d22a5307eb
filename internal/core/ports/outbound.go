package ports

import (
	"context"
	"time"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

// Completer turns a prompt into model text. Implementations go through
// the relay, either in-process or over HTTP.
type Completer interface {
	Complete(ctx context.Context, prompt domain.Prompt) (string, error)
}

// ModelClient calls the upstream generative model once.
type ModelClient interface {
	Configured() bool
	Generate(ctx context.Context, req domain.UpstreamRequest) (*domain.GenerateResponse, error)
}

// DocumentInspector reads informational metadata from an upload.
type DocumentInspector interface {
	PageCount(att *domain.Attachment) int
}

// StageObserver receives workflow stage outcomes for metrics.
type StageObserver interface {
	ObserveStage(stage domain.Stage, outcome string, duration time.Duration)
}
