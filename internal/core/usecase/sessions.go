package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/scanscribe/internal/core/domain"
	"github.com/kirillkom/scanscribe/internal/core/ports"
)

type sessionEntry struct {
	workflow *WorkflowController
	lastSeen time.Time
}

// SessionManager keeps workflow sessions in memory and expires the ones
// that have been idle longer than the TTL.
type SessionManager struct {
	newWorkflow func() *WorkflowController
	idleTTL     time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionManager(newWorkflow func() *WorkflowController, idleTTL time.Duration) *SessionManager {
	return &SessionManager{
		newWorkflow: newWorkflow,
		idleTTL:     idleTTL,
		now:         time.Now,
		sessions:    make(map[string]*sessionEntry),
	}
}

func (m *SessionManager) Create() (string, ports.Workflow) {
	id := uuid.NewString()
	wf := m.newWorkflow()

	m.mu.Lock()
	m.sessions[id] = &sessionEntry{workflow: wf, lastSeen: m.now()}
	m.mu.Unlock()
	return id, wf
}

func (m *SessionManager) Get(id string) (ports.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, sessionNotFound(id)
	}
	entry.lastSeen = m.now()
	return entry.workflow, nil
}

func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return sessionNotFound(id)
	}
	delete(m.sessions, id)
	return nil
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune removes sessions idle for longer than the TTL and returns how many
// were removed. A non-positive TTL keeps sessions forever.
func (m *SessionManager) Prune() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, entry := range m.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run prunes idle sessions every interval until ctx is done.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	if m.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Prune(); removed > 0 {
				slog.Info("sessions_pruned", "removed", removed, "remaining", m.Len())
			}
		}
	}
}

func sessionNotFound(id string) error {
	return &domain.MessageError{Kind: domain.ErrSessionNotFound, Message: "session " + id + " not found"}
}
