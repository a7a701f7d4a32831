// Package agent implements the conversation state machine: it consumes
// assembled utterances and voice-activity events, drives the
// transcribe, classify, generate, synthesize pipeline, and emits typed
// outputs for a transport to deliver. At most one turn is in flight at
// a time; a speech onset during playback interrupts it.
package agent

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carevoice/companion/pkg/ai"
	"github.com/carevoice/companion/pkg/ai/asr"
	"github.com/carevoice/companion/pkg/ai/reply"
	"github.com/carevoice/companion/pkg/ai/sentiment"
	"github.com/carevoice/companion/pkg/ai/tts"
	"github.com/carevoice/companion/pkg/feature"
	"github.com/carevoice/companion/pkg/memory"
	"github.com/carevoice/companion/pkg/reminder"
	"github.com/carevoice/companion/pkg/vad"
	"github.com/carevoice/companion/pkg/voice"
)

// DefaultPatiencePrompt is spoken when an utterance yields no usable text.
const DefaultPatiencePrompt = "I didn't quite catch that. Could you say it again for me?"

// DefaultGreeting opens a session before any user speech.
const DefaultGreeting = "Hello! It's so nice to hear from you. How are you feeling today?"

// Config wires the agent's capabilities. Transcriber, Classifier,
// Generator and Memory are required; Synthesizer may be nil for a
// text-only agent.
type Config struct {
	Transcriber asr.Transcriber
	Classifier  sentiment.Classifier
	Generator   reply.Generator
	Synthesizer tts.Synthesizer
	Memory      *memory.Memory

	Styling    voice.Config
	Medication *feature.Medication
	WordOfDay  *feature.WordOfDay
	Words      feature.WordSource

	// Budget bounds the transcribe and classify vendor calls. Reply and
	// synthesis chains carry their own budgets.
	Budget ai.CallBudget

	PatiencePrompt string
	Greeting       string
	// Greet makes the agent open with Greeting when Run starts.
	Greet bool

	Logger *slog.Logger
	Clock  func() time.Time
}

// turnOutcome is reported by a turn goroutine back to the run loop.
type turnOutcome struct {
	speak     bool
	cancelled bool
	// resolved clears the active topic (e.g. medication confirmed taken).
	resolved bool
	// opened sets a new active topic from a background turn.
	opened topicState
}

// topicState is the loop-owned conversational overlay set by background
// reminder turns and consulted by subsequent user turns.
type topicState struct {
	topic reply.Topic
	med   string
	word  feature.Word
}

// Agent runs the conversation loop for one session.
type Agent struct {
	cfg Config

	state atomic.Int32

	utterances chan *vad.Utterance
	gateEvents chan vad.Event
	background chan reminder.Event
	interrupts chan struct{}
	playback   chan struct{}
	outputs    chan Output

	shutdown     chan struct{}
	shutdownOnce sync.Once

	// Loop-owned; never touched outside Run's goroutine.
	pending    []*vad.Utterance
	bgQueue    []reminder.Event
	topic      topicState
	turnCancel context.CancelFunc
	turnDone   chan turnOutcome
	turnLive   bool
}

// New validates cfg, fills defaults and returns an agent ready to Run.
func New(cfg Config) *Agent {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Budget.Timeout == 0 {
		cfg.Budget = ai.DefaultBudget
	}
	if cfg.PatiencePrompt == "" {
		cfg.PatiencePrompt = DefaultPatiencePrompt
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	return &Agent{
		cfg:        cfg,
		utterances: make(chan *vad.Utterance, 8),
		gateEvents: make(chan vad.Event, 8),
		background: make(chan reminder.Event, 4),
		interrupts: make(chan struct{}, 1),
		playback:   make(chan struct{}, 1),
		outputs:    make(chan Output, 16),
		shutdown:   make(chan struct{}),
		turnDone:   make(chan turnOutcome, 1),
	}
}

// State returns the current phase. Safe from any goroutine.
func (a *Agent) State() State { return State(a.state.Load()) }

func (a *Agent) setState(s State) {
	prev := State(a.state.Swap(int32(s)))
	if prev != s {
		a.cfg.Logger.Debug("state change", "from", prev.String(), "to", s.String())
	}
}

// Outputs is the stream of events for the transport. Closed when Run
// returns.
func (a *Agent) Outputs() <-chan Output { return a.outputs }

// PushUtterance hands a finalized utterance to the loop. Blocks only if
// the queue channel is full; returns once the agent is shut down.
func (a *Agent) PushUtterance(u *vad.Utterance) {
	select {
	case a.utterances <- u:
	case <-a.shutdown:
	}
}

// PushGateEvent delivers a voice-activity boundary event. Speech onsets
// during playback trigger barge-in.
func (a *Agent) PushGateEvent(ev vad.Event) {
	select {
	case a.gateEvents <- ev:
	case <-a.shutdown:
	}
}

// Notify implements reminder.Target. It never blocks; a full queue
// drops the event and reports false so the scheduler can retry on its
// next tick.
func (a *Agent) Notify(ev reminder.Event) bool {
	select {
	case a.background <- ev:
		return true
	default:
		return false
	}
}

// Interrupt requests a barge-in regardless of voice activity, e.g. from
// an explicit client stop signal.
func (a *Agent) Interrupt() {
	select {
	case a.interrupts <- struct{}{}:
	default:
	}
}

// PlaybackFinished tells the loop the client finished playing the last
// clip, releasing the Speaking state.
func (a *Agent) PlaybackFinished() {
	select {
	case a.playback <- struct{}{}:
	default:
	}
}

// Close stops the loop. Idempotent.
func (a *Agent) Close() {
	a.shutdownOnce.Do(func() { close(a.shutdown) })
}

// Run owns the state machine until ctx is cancelled or Close is called.
func (a *Agent) Run(ctx context.Context) error {
	defer func() {
		// Unblock any in-flight turn goroutine, wait for it to report,
		// then close the output stream.
		a.Close()
		a.cancelTurn()
		if a.turnLive {
			<-a.turnDone
		}
		close(a.outputs)
	}()

	a.setState(StateIdle)
	a.emit(Output{Type: OutputStatus, Status: StatusListening})

	if a.cfg.Greet {
		a.startNudgeTurn(ctx, NudgeGreeting, a.cfg.Greeting, topicState{}, false)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.shutdown:
			return nil
		case ev := <-a.gateEvents:
			if ev.Type == vad.EventSpeechStart {
				a.bargeIn(ctx)
			}
		case <-a.interrupts:
			a.bargeIn(ctx)
		case u := <-a.utterances:
			a.handleUtterance(ctx, u)
		case ev := <-a.background:
			a.handleBackground(ctx, ev)
		case out := <-a.turnDone:
			a.finishTurn(ctx, out)
		case <-a.playback:
			if a.State() == StateSpeaking {
				a.enterIdle(ctx)
			}
		}
	}
}

// bargeIn interrupts playback or in-flight synthesis. Speech onsets in
// other states are ignored; the utterance that follows will queue.
func (a *Agent) bargeIn(ctx context.Context) {
	switch a.State() {
	case StateSpeaking:
		a.cfg.Logger.Info("barge-in: stopping playback")
		a.enterIdle(ctx)
	case StateSynthesizing:
		a.cfg.Logger.Info("barge-in: cancelling synthesis")
		a.cancelTurn()
		// The cancelled turn still reports through turnDone; Idle is
		// entered there so the loop never double-dispatches.
	}
}

func (a *Agent) handleUtterance(ctx context.Context, u *vad.Utterance) {
	if a.turnLive || a.State() != StateIdle {
		a.pending = append(a.pending, u)
		return
	}
	a.startUserTurn(ctx, u)
}

func (a *Agent) handleBackground(ctx context.Context, ev reminder.Event) {
	if a.turnLive || a.State() != StateIdle || len(a.pending) > 0 {
		a.bgQueue = append(a.bgQueue, ev)
		return
	}
	a.dispatchBackground(ctx, ev)
}

func (a *Agent) dispatchBackground(ctx context.Context, ev reminder.Event) {
	switch ev.Kind {
	case reminder.KindMedication:
		text := a.cfg.Medication.ReminderMessage(ev.Name, a.cfg.Clock())
		opened := topicState{topic: reply.TopicMedication, med: ev.Name}
		a.startNudgeTurn(ctx, NudgeMedication, text, opened, true)
	case reminder.KindWordOfDay:
		word := a.pickWord(ctx)
		text := a.cfg.WordOfDay.Introduction(word)
		opened := topicState{topic: reply.TopicWordOfDay, word: word}
		a.startNudgeTurn(ctx, NudgeWordOfDay, text, opened, true)
	default:
		a.cfg.Logger.Warn("unknown reminder kind", "kind", ev.Kind.String())
	}
}

func (a *Agent) pickWord(ctx context.Context) feature.Word {
	word, err := a.cfg.Words.WordOfDay(ctx)
	if err != nil {
		a.cfg.Logger.Warn("word source failed, using built-in list", "error", err)
		word, _ = feature.NewStaticWords(a.cfg.Clock).WordOfDay(ctx)
	}
	return word
}

// finishTurn runs on the loop goroutine once a turn goroutine reports.
func (a *Agent) finishTurn(ctx context.Context, out turnOutcome) {
	a.turnLive = false
	a.turnCancel = nil
	if !out.cancelled {
		if out.resolved {
			a.topic = topicState{}
		}
		if out.opened.topic != reply.TopicNone {
			a.topic = out.opened
		}
	}
	if out.cancelled || !out.speak {
		a.enterIdle(ctx)
		return
	}
	a.setState(StateSpeaking)
	a.emit(Output{Type: OutputStatus, Status: StatusSpeaking})
}

// enterIdle returns to listening and dispatches queued work, user
// utterances before background events.
func (a *Agent) enterIdle(ctx context.Context) {
	a.setState(StateIdle)
	a.emit(Output{Type: OutputStatus, Status: StatusListening})
	if len(a.pending) > 0 {
		u := a.pending[0]
		a.pending = a.pending[1:]
		a.startUserTurn(ctx, u)
		return
	}
	if len(a.bgQueue) > 0 {
		ev := a.bgQueue[0]
		a.bgQueue = a.bgQueue[1:]
		a.dispatchBackground(ctx, ev)
	}
}

func (a *Agent) cancelTurn() {
	if a.turnCancel != nil {
		a.turnCancel()
	}
}

// emit delivers an output without wedging a turn goroutine on shutdown.
func (a *Agent) emit(out Output) {
	select {
	case a.outputs <- out:
	case <-a.shutdown:
	}
}
