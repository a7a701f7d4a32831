// Package session ties one client connection to an agent: it owns the
// audio ingest loop that drives voice-activity detection, forwards
// utterances and boundary events to the agent, and tracks activity for
// idle reaping.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carevoice/companion/pkg/agent"
	"github.com/carevoice/companion/pkg/audio"
	"github.com/carevoice/companion/pkg/reminder"
	"github.com/carevoice/companion/pkg/vad"
)

// ErrClosed is returned by PushFrame after the session is destroyed.
var ErrClosed = errors.New("session: closed")

// Session is one live conversation. All methods are safe for concurrent
// use; frame processing happens on a single ingest goroutine so the
// VAD pipeline never sees interleaved frames.
type Session struct {
	id    string
	agent *agent.Agent
	pipe  *vad.Pipeline
	log   *slog.Logger

	// ingest carries frames and flush markers on one queue so an
	// end-of-utterance signal never overtakes the audio before it.
	ingest chan ingestMsg

	lastActive atomic.Int64 // unix nanos
	utts       atomic.Uint64
	createdAt  time.Time

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// New builds a session around an agent and VAD pipeline. Run must be
// called for frames to flow.
func New(id string, ag *agent.Agent, pipe *vad.Pipeline, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		id:        id,
		agent:     ag,
		pipe:      pipe,
		log:       log.With("session", id),
		ingest:    make(chan ingestMsg, 256),
		createdAt: time.Now(),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.touch()
	return s
}

// ID implements reminder.Target.
func (s *Session) ID() string { return s.id }

// Notify implements reminder.Target by forwarding to the agent's
// background queue. Non-blocking.
func (s *Session) Notify(ev reminder.Event) bool {
	select {
	case <-s.closed:
		return true // closed sessions swallow events so the scheduler stops retrying
	default:
	}
	return s.agent.Notify(ev)
}

// Run starts the agent loop and the ingest loop, returning when ctx is
// cancelled or the session is closed.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	agentErr := make(chan error, 1)
	go func() { agentErr <- s.agent.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			s.agent.Close()
			return <-agentErr
		case err := <-agentErr:
			return err
		case msg := <-s.ingest:
			s.handleIngest(msg)
		}
	}
}

type ingestMsg struct {
	frame audio.Frame
	flush bool

	// flushed, when set on a flush message, receives the session's total
	// utterance count once the flush has been processed.
	flushed chan<- uint64
}

// handleIngest runs one queued message through VAD and forwards the
// results to the agent.
func (s *Session) handleIngest(msg ingestMsg) {
	s.touch()
	if msg.flush {
		if u := s.pipe.Flush(); u != nil {
			s.agent.PushUtterance(u)
			s.utts.Add(1)
		}
		if msg.flushed != nil {
			msg.flushed <- s.utts.Load()
		}
		return
	}
	events, utt := s.pipe.Process(msg.frame)
	for _, ev := range events {
		s.agent.PushGateEvent(ev)
	}
	if utt != nil {
		s.agent.PushUtterance(utt)
		s.utts.Add(1)
	}
}

// PushFrame queues a frame for the ingest loop. A full queue drops the
// frame rather than stalling the caller; VAD treats the resulting
// sequence gap as a corrupt utterance.
func (s *Session) PushFrame(f audio.Frame) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	select {
	case s.ingest <- ingestMsg{frame: f}:
	default:
		s.log.Warn("ingest queue full, dropping frame", "seq", f.Seq)
	}
	return nil
}

// EndOfUtterance finalizes any buffered speech immediately, for clients
// that signal their own end of turn.
func (s *Session) EndOfUtterance() {
	select {
	case s.ingest <- ingestMsg{flush: true}:
	case <-s.closed:
	}
}

// Flush finalizes buffered speech like EndOfUtterance and blocks until
// the ingest loop has processed everything queued before it, returning
// the session's total utterance count. A buffered transport compares
// counts around a POST to detect audio that never crossed the voice
// threshold.
func (s *Session) Flush() (uint64, error) {
	flushed := make(chan uint64, 1)
	select {
	case s.ingest <- ingestMsg{flush: true, flushed: flushed}:
	case <-s.closed:
		return 0, ErrClosed
	}
	select {
	case n := <-flushed:
		return n, nil
	case <-s.closed:
		return 0, ErrClosed
	}
}

// Utterances reports how many utterances the ingest pipeline has emitted.
func (s *Session) Utterances() uint64 { return s.utts.Load() }

// Interrupt forwards an explicit client stop to the agent.
func (s *Session) Interrupt() {
	s.touch()
	s.agent.Interrupt()
}

// PlaybackFinished reports client-side playback completion.
func (s *Session) PlaybackFinished() {
	s.touch()
	s.agent.PlaybackFinished()
}

// Outputs is the agent's event stream for the transport.
func (s *Session) Outputs() <-chan agent.Output { return s.agent.Outputs() }

// Close tears the session down. Idempotent and safe from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.log.Info("session closed", "age", time.Since(s.createdAt).Round(time.Second))
	})
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// IdleFor reports how long since the client last sent anything.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastActive.Load()))
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}
