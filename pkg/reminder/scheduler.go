// Package reminder evaluates background schedules (medication times,
// word-of-day) and injects events into session queues. One scheduler loop
// serves every live session.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Kind identifies what a schedule triggers.
type Kind int

const (
	KindMedication Kind = iota
	KindWordOfDay
)

func (k Kind) String() string {
	switch k {
	case KindMedication:
		return "medication"
	case KindWordOfDay:
		return "word_of_day"
	default:
		return "unknown"
	}
}

// Schedule is one reminder entity. The CRUD collaborator owns mutation;
// the core only reads and evaluates due-ness. Reads tolerate concurrent
// updates: a schedule seen mid-edit fires at worst one tick late.
type Schedule struct {
	ID      string
	Kind    Kind
	Name    string // medication name; unused for word-of-day
	At      string // "HH:MM", local time
	Days    []time.Weekday
	Enabled bool

	// SessionID scopes the reminder to one session. Empty means every
	// live session.
	SessionID string
}

// Store supplies the current schedule set.
type Store interface {
	Schedules(ctx context.Context) ([]Schedule, error)
}

// Event is injected into a session's background queue on a due match.
type Event struct {
	Kind       Kind
	ScheduleID string
	Name       string
	At         time.Time
}

// Target receives events for one session. Notify must not block; it
// returns false when the session's queue is full and the event was
// dropped, so one slow session never stalls the tick for the others.
type Target interface {
	ID() string
	Notify(Event) bool
}

const (
	// DefaultInterval between scheduler ticks.
	DefaultInterval = 60 * time.Second
	// DefaultTolerance around a schedule's trigger time.
	DefaultTolerance = time.Minute
	// DefaultDebounce suppresses re-fires of the same entity.
	DefaultDebounce = 30 * time.Minute
)

// Scheduler is the shared background tick loop.
type Scheduler struct {
	store     Store
	interval  time.Duration
	tolerance time.Duration
	debounce  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	targets map[string]Target
	fired   map[string]time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithDebounce overrides the per-entity re-fire suppression window.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) { s.debounce = d }
}

// New creates a scheduler. Call Run to start ticking.
func New(store Store, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		store:     store,
		interval:  DefaultInterval,
		tolerance: DefaultTolerance,
		debounce:  DefaultDebounce,
		logger:    logger,
		now:       time.Now,
		targets:   make(map[string]Target),
		fired:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a session target. Safe to call while running.
func (s *Scheduler) Register(t Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[t.ID()] = t
}

// Deregister removes a session target. No-op if absent.
func (s *Scheduler) Deregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.targets, id)
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates all schedules once. Exposed so tests and callers can
// drive evaluation without the timer.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	schedules, err := s.store.Schedules(ctx)
	if err != nil {
		s.logger.Warn("reading schedules failed, skipping tick",
			slog.String("error", err.Error()))
		return
	}

	s.prune(schedules)

	for _, sched := range schedules {
		if !s.due(sched, now) {
			continue
		}
		// The debounce stamp is written only after a delivery landed, so
		// a tick where every matching queue was full retries next tick.
		if s.dispatch(sched, now) {
			s.markFired(sched.ID, now)
		}
	}
}

func (s *Scheduler) due(sched Schedule, now time.Time) bool {
	if !sched.Enabled {
		return false
	}
	trigger, err := triggerTime(sched.At, now)
	if err != nil {
		s.logger.Warn("schedule has invalid trigger time",
			slog.String("id", sched.ID),
			slog.String("at", sched.At))
		return false
	}
	if d := now.Sub(trigger); d < -s.tolerance || d > s.tolerance {
		return false
	}
	if len(sched.Days) > 0 && !containsDay(sched.Days, now.Weekday()) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.fired[sched.ID]
	return !ok || now.Sub(last) >= s.debounce
}

func (s *Scheduler) markFired(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[id] = now
}

// prune drops debounce stamps for schedules that no longer exist.
func (s *Scheduler) prune(schedules []Schedule) {
	live := make(map[string]bool, len(schedules))
	for _, sched := range schedules {
		live[sched.ID] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.fired {
		if !live[id] {
			delete(s.fired, id)
		}
	}
}

// dispatch reports whether at least one target accepted the event.
func (s *Scheduler) dispatch(sched Schedule, now time.Time) bool {
	ev := Event{
		Kind:       sched.Kind,
		ScheduleID: sched.ID,
		Name:       sched.Name,
		At:         now,
	}

	s.mu.Lock()
	targets := make([]Target, 0, len(s.targets))
	for id, t := range s.targets {
		if sched.SessionID == "" || sched.SessionID == id {
			targets = append(targets, t)
		}
	}
	s.mu.Unlock()

	delivered := false
	for _, t := range targets {
		if t.Notify(ev) {
			delivered = true
			continue
		}
		s.logger.Warn("session queue full, dropping reminder event",
			slog.String("session", t.ID()),
			slog.String("schedule", sched.ID))
	}
	return delivered
}

func triggerTime(at string, now time.Time) (time.Time, error) {
	var hour, min int
	if _, err := fmt.Sscanf(at, "%d:%d", &hour, &min); err != nil {
		return time.Time{}, err
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return time.Time{}, fmt.Errorf("out of range: %s", at)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location()), nil
}

func containsDay(days []time.Weekday, d time.Weekday) bool {
	for _, day := range days {
		if day == d {
			return true
		}
	}
	return false
}
