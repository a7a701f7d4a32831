package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carevoice/companion/pkg/agent"
	"github.com/carevoice/companion/pkg/reminder"
	"github.com/carevoice/companion/pkg/vad"
)

// DefaultIdleTimeout before an inactive session is reaped.
const DefaultIdleTimeout = 10 * time.Minute

// Factory builds the per-session agent and VAD pipeline. Called once per
// Create with the new session's id.
type Factory func(id string) (*agent.Agent, *vad.Pipeline, error)

// Manager owns all live sessions: creation, lookup, reminder
// registration, idle reaping and teardown.
type Manager struct {
	factory   Factory
	scheduler *reminder.Scheduler
	log       *slog.Logger

	idleTimeout time.Duration
	clock       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout overrides the reap threshold. Zero disables reaping.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithClock substitutes the time source for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = now }
}

// NewManager creates a manager. scheduler may be nil when background
// reminders are disabled.
func NewManager(factory Factory, scheduler *reminder.Scheduler, log *slog.Logger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		factory:     factory,
		scheduler:   scheduler,
		log:         log,
		idleTimeout: DefaultIdleTimeout,
		clock:       time.Now,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create builds, registers and starts a new session. The session runs
// until ctx is cancelled, the client goes idle, or Destroy is called.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	ag, pipe, err := m.factory(id)
	if err != nil {
		return nil, fmt.Errorf("session: building agent: %w", err)
	}
	s := New(id, ag, pipe, m.log)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if m.scheduler != nil {
		m.scheduler.Register(s)
	}

	go func() {
		if err := s.Run(ctx); err != nil && ctx.Err() == nil {
			m.log.Error("session loop ended", "session", id, "error", err)
		}
		m.Destroy(id)
	}()

	m.log.Info("session created", "session", id)
	return s, nil
}

// Get returns the session or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Len reports live session count.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Destroy tears down a session. Destroying an unknown or already
// destroyed id is a no-op.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	if m.scheduler != nil {
		m.scheduler.Deregister(id)
	}
	s.Close()
}

// Sweep destroys sessions idle past the timeout. Exported for tests;
// Run calls it periodically.
func (m *Manager) Sweep() {
	if m.idleTimeout <= 0 {
		return
	}
	now := m.clock()
	m.mu.Lock()
	var stale []string
	for id, s := range m.sessions {
		if s.IdleFor(now) > m.idleTimeout {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()
	for _, id := range stale {
		m.log.Info("reaping idle session", "session", id)
		m.Destroy(id)
	}
}

// Run sweeps idle sessions until ctx is cancelled, then destroys all
// remaining sessions.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// CloseAll destroys every live session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Destroy(id)
	}
}
