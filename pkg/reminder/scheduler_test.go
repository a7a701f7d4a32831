package reminder

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
)

type captureTarget struct {
	mu     sync.Mutex
	id     string
	events []Event
	full   bool
}

func newCaptureTarget(id string) *captureTarget {
	return &captureTarget{id: id}
}

func (t *captureTarget) ID() string { return t.id }

func (t *captureTarget) Notify(ev Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.full {
		return false
	}
	t.events = append(t.events, ev)
	return true
}

func (t *captureTarget) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

// at builds a fixed clock on the given weekday and wall time.
func at(day time.Weekday, hour, min int) time.Time {
	// 2026-08-03 is a Monday.
	base := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	base = base.AddDate(0, 0, int(day-time.Monday+7)%7)
	return time.Date(base.Year(), base.Month(), base.Day(), hour, min, 0, 0, time.UTC)
}

func TestTickFiresDueSchedule(t *testing.T) {
	is := is.New(t)

	now := at(time.Monday, 9, 0)
	store := NewStaticStore(Schedule{
		ID:      "med-1",
		Kind:    KindMedication,
		Name:    "heart pills",
		At:      "09:00",
		Enabled: true,
	})
	s := New(store, testLogger(), WithClock(func() time.Time { return now }))
	target := newCaptureTarget("sess-1")
	s.Register(target)

	s.Tick(context.Background())

	events := target.Events()
	is.Equal(len(events), 1)
	is.Equal(events[0].Kind, KindMedication)
	is.Equal(events[0].Name, "heart pills")
	is.Equal(events[0].ScheduleID, "med-1")
}

func TestTickTolerance(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"exactly on time", at(time.Monday, 9, 0), 1},
		{"one minute late", at(time.Monday, 9, 1), 1},
		{"one minute early", at(time.Monday, 8, 59), 1},
		{"two minutes late", at(time.Monday, 9, 2), 0},
		{"two minutes early", at(time.Monday, 8, 58), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)

			store := NewStaticStore(Schedule{
				ID: "med-1", Kind: KindMedication, Name: "vitamins",
				At: "09:00", Enabled: true,
			})
			s := New(store, testLogger(), WithClock(func() time.Time { return tc.now }))
			target := newCaptureTarget("sess-1")
			s.Register(target)

			s.Tick(context.Background())
			is.Equal(len(target.Events()), tc.want)
		})
	}
}

func TestTickDayFilter(t *testing.T) {
	is := is.New(t)

	store := NewStaticStore(Schedule{
		ID: "med-1", Kind: KindMedication, Name: "vitamins",
		At: "09:00", Days: []time.Weekday{time.Monday, time.Wednesday}, Enabled: true,
	})
	target := newCaptureTarget("sess-1")

	now := at(time.Tuesday, 9, 0)
	s := New(store, testLogger(), WithClock(func() time.Time { return now }))
	s.Register(target)
	s.Tick(context.Background())
	is.Equal(len(target.Events()), 0) // tuesday is not in the schedule

	now = at(time.Wednesday, 9, 0)
	s.Tick(context.Background())
	is.Equal(len(target.Events()), 1)
}

func TestTickDebounce(t *testing.T) {
	is := is.New(t)

	store := NewStaticStore(Schedule{
		ID: "med-1", Kind: KindMedication, Name: "vitamins",
		At: "09:00", Enabled: true,
	})
	now := at(time.Monday, 9, 0)
	s := New(store, testLogger(),
		WithClock(func() time.Time { return now }),
		WithDebounce(30*time.Minute))
	target := newCaptureTarget("sess-1")
	s.Register(target)

	s.Tick(context.Background())
	now = now.Add(time.Minute)
	s.Tick(context.Background())
	is.Equal(len(target.Events()), 1) // second tick inside the debounce window

	// Wide tolerance so the trigger is still due after the debounce lapses.
	s.tolerance = time.Hour
	now = now.Add(31 * time.Minute)
	s.Tick(context.Background())
	is.Equal(len(target.Events()), 2)
}

func TestTickSkipsDisabled(t *testing.T) {
	is := is.New(t)

	store := NewStaticStore(Schedule{
		ID: "med-1", Kind: KindMedication, Name: "vitamins",
		At: "09:00", Enabled: false,
	})
	now := at(time.Monday, 9, 0)
	s := New(store, testLogger(), WithClock(func() time.Time { return now }))
	target := newCaptureTarget("sess-1")
	s.Register(target)

	s.Tick(context.Background())
	is.Equal(len(target.Events()), 0)
}

func TestTickInvalidTimeSkipped(t *testing.T) {
	is := is.New(t)

	store := NewStaticStore(
		Schedule{ID: "bad", Kind: KindMedication, Name: "a", At: "25:99", Enabled: true},
		Schedule{ID: "good", Kind: KindMedication, Name: "b", At: "09:00", Enabled: true},
	)
	now := at(time.Monday, 9, 0)
	s := New(store, testLogger(), WithClock(func() time.Time { return now }))
	target := newCaptureTarget("sess-1")
	s.Register(target)

	s.Tick(context.Background())
	events := target.Events()
	is.Equal(len(events), 1)
	is.Equal(events[0].ScheduleID, "good")
}

func TestTickSessionScoping(t *testing.T) {
	is := is.New(t)

	store := NewStaticStore(
		Schedule{ID: "scoped", Kind: KindMedication, Name: "a", At: "09:00",
			Enabled: true, SessionID: "sess-1"},
		Schedule{ID: "broadcast", Kind: KindWordOfDay, At: "09:00", Enabled: true},
	)
	now := at(time.Monday, 9, 0)
	s := New(store, testLogger(), WithClock(func() time.Time { return now }))
	one := newCaptureTarget("sess-1")
	two := newCaptureTarget("sess-2")
	s.Register(one)
	s.Register(two)

	s.Tick(context.Background())

	is.Equal(len(one.Events()), 2) // scoped plus broadcast
	twoEvents := two.Events()
	is.Equal(len(twoEvents), 1) // broadcast only
	is.Equal(twoEvents[0].Kind, KindWordOfDay)
}

func TestTickFullTargetDoesNotBlock(t *testing.T) {
	is := is.New(t)

	store := NewStaticStore(Schedule{
		ID: "med-1", Kind: KindMedication, Name: "vitamins",
		At: "09:00", Enabled: true,
	})
	now := at(time.Monday, 9, 0)
	s := New(store, testLogger(), WithClock(func() time.Time { return now }))
	full := newCaptureTarget("sess-full")
	full.full = true
	healthy := newCaptureTarget("sess-ok")
	s.Register(full)
	s.Register(healthy)

	s.Tick(context.Background())

	is.Equal(len(full.Events()), 0)
	is.Equal(len(healthy.Events()), 1)
}

func TestTickRetriesAfterFullQueue(t *testing.T) {
	is := is.New(t)

	store := NewStaticStore(Schedule{
		ID: "med-1", Kind: KindMedication, Name: "vitamins",
		At: "09:00", Enabled: true,
	})
	now := at(time.Monday, 9, 0)
	s := New(store, testLogger(), WithClock(func() time.Time { return now }))
	target := newCaptureTarget("sess-1")
	target.full = true
	s.Register(target)

	// Every queue full: nothing lands and no debounce stamp is written.
	s.Tick(context.Background())
	is.Equal(len(target.Events()), 0)

	// Queue frees up before the next tick; the event goes out then.
	target.mu.Lock()
	target.full = false
	target.mu.Unlock()
	now = now.Add(time.Minute)
	s.Tick(context.Background())
	is.Equal(len(target.Events()), 1)
}

func TestFiredPrunedWithScheduleSet(t *testing.T) {
	is := is.New(t)

	now := at(time.Monday, 9, 0)
	store := &swappableStore{}
	store.set(Schedule{ID: "med-1", Kind: KindMedication, Name: "vitamins",
		At: "09:00", Enabled: true})
	s := New(store, testLogger(), WithClock(func() time.Time { return now }))
	target := newCaptureTarget("sess-1")
	s.Register(target)

	s.Tick(context.Background())
	is.Equal(len(target.Events()), 1)
	s.mu.Lock()
	_, tracked := s.fired["med-1"]
	s.mu.Unlock()
	is.True(tracked)

	// Deleting the schedule drops its debounce stamp on the next tick.
	store.set()
	s.Tick(context.Background())
	s.mu.Lock()
	_, tracked = s.fired["med-1"]
	s.mu.Unlock()
	is.True(!tracked)
}

type swappableStore struct {
	mu        sync.Mutex
	schedules []Schedule
}

func (s *swappableStore) set(schedules ...Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = schedules
}

func (s *swappableStore) Schedules(ctx context.Context) ([]Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out, nil
}

func TestDeregisterStopsDelivery(t *testing.T) {
	is := is.New(t)

	store := NewStaticStore(Schedule{
		ID: "med-1", Kind: KindMedication, Name: "vitamins",
		At: "09:00", Enabled: true,
	})
	now := at(time.Monday, 9, 0)
	s := New(store, testLogger(), WithClock(func() time.Time { return now }))
	target := newCaptureTarget("sess-1")
	s.Register(target)
	s.Deregister("sess-1")

	s.Tick(context.Background())
	is.Equal(len(target.Events()), 0)
}
