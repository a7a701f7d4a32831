// Package memory stores completed conversation turns and serves the bounded
// recent-context window used for prompt construction.
//
// Turns are immutable once appended. Append is the only mutator and is
// called exactly once per completed turn, after reply generation succeeds;
// a pipeline that dies mid-turn records nothing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/carevoice/companion/pkg/ai/sentiment"
)

// DefaultWindow is the number of turns handed to the reply generator as
// context. Fixed configuration, never user-controlled per request.
const DefaultWindow = 4

// Turn is one completed exchange, user or system initiated.
type Turn struct {
	UserText  string
	AIText    string
	Sentiment sentiment.Label
	Score     float64
	Topic     string
	At        time.Time
}

// Persister receives every appended turn for durable storage. Persistence
// failures are logged by the caller and never fail the append: the in-memory
// window is the source of truth for prompt context.
type Persister interface {
	Append(ctx context.Context, t Turn) error
}

// Memory is the per-session conversation history. The hot path is an
// in-memory slice; an optional Persister mirrors appends to durable storage.
type Memory struct {
	mu      sync.Mutex
	turns   []Turn
	window  int
	persist Persister
}

// Option configures a Memory.
type Option func(*Memory)

// WithWindow overrides the recent-context window size.
func WithWindow(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.window = n
		}
	}
}

// WithPersister mirrors appends to p.
func WithPersister(p Persister) Option {
	return func(m *Memory) { m.persist = p }
}

// New creates an empty conversation memory.
func New(opts ...Option) *Memory {
	m := &Memory{window: DefaultWindow}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Append records a completed turn. Returns the persister's error, if any,
// so the caller can log it; the turn is retained in memory regardless.
func (m *Memory) Append(ctx context.Context, t Turn) error {
	if t.At.IsZero() {
		t.At = time.Now()
	}

	m.mu.Lock()
	m.turns = append(m.turns, t)
	persist := m.persist
	m.mu.Unlock()

	if persist != nil {
		return persist.Append(ctx, t)
	}
	return nil
}

// Recent returns the last min(n, window) turns in insertion order.
func (m *Memory) Recent(n int) []Turn {
	if n <= 0 || n > m.window {
		n = m.window
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if n > len(m.turns) {
		n = len(m.turns)
	}
	out := make([]Turn, n)
	copy(out, m.turns[len(m.turns)-n:])
	return out
}

// Len returns the number of turns recorded this session.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}
