package ports

import (
	"context"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

// Relay is the inbound contract for forwarding one generation envelope.
// Ready returns the error every call would fail with before any input is
// looked at, or nil.
type Relay interface {
	Ready() error
	Relay(ctx context.Context, req domain.GenerationRequest) (*domain.GenerateResponse, error)
}

// Workflow is one transcription session: upload, three dependent stages
// and the two page readers.
type Workflow interface {
	Upload(att *domain.Attachment)
	Clear()
	StartTranscription(ctx context.Context, pageRange string) error
	StartProofreading(ctx context.Context) error
	GenerateResources(ctx context.Context, kind domain.ResourceKind) error
	Advance(view domain.PageView)
	Retreat(view domain.PageView)
	Pages(view domain.PageView) []domain.Page
	View() domain.SessionView
}

// SessionRegistry owns the live workflow sessions of a process.
type SessionRegistry interface {
	Create() (string, Workflow)
	Get(id string) (Workflow, error)
	Delete(id string) error
	Len() int
}
