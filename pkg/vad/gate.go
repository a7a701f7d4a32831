// Package vad implements energy-based voice activity detection and
// utterance assembly for the ingest side of a session.
//
// The gate turns a continuous stream of PCM frames into SpeechStart and
// SpeechEnd events. The assembler buffers the frames between those events
// into a finalized utterance the orchestrator can transcribe.
package vad

import (
	"time"

	"github.com/carevoice/companion/pkg/audio"
)

// EventType identifies a gate event.
type EventType int

const (
	EventSpeechStart EventType = iota
	EventSpeechEnd
)

func (t EventType) String() string {
	switch t {
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechEnd:
		return "speech_end"
	default:
		return "unknown"
	}
}

// Event is emitted by the gate. No audio content leaves the gate except
// inside the assembled utterance.
type Event struct {
	Type      EventType
	Timestamp time.Time
}

// GateConfig holds the detection thresholds.
type GateConfig struct {
	// VoiceThreshold is the normalized RMS level above which a frame
	// counts as speech.
	VoiceThreshold float64

	// OnsetDuration is how long energy must stay above the threshold
	// before SpeechStart fires. Debounces transient clicks.
	OnsetDuration time.Duration

	// PatienceWindow is how long energy must stay below the threshold
	// before SpeechEnd fires. Deliberately long by default to give slow
	// speakers room to finish a thought.
	PatienceWindow time.Duration
}

// DefaultGateConfig returns the stock thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		VoiceThreshold: 0.015,
		OnsetDuration:  150 * time.Millisecond,
		PatienceWindow: 2000 * time.Millisecond,
	}
}

// Gate runs energy VAD over a frame stream. Not safe for concurrent use;
// each session owns one gate fed from a single ingest goroutine.
type Gate struct {
	cfg GateConfig

	inSpeech     bool
	speechAccum  time.Duration
	silenceAccum time.Duration
	lastLoud     time.Time
}

// NewGate creates a gate with the given thresholds.
func NewGate(cfg GateConfig) *Gate {
	if cfg.VoiceThreshold <= 0 {
		cfg.VoiceThreshold = DefaultGateConfig().VoiceThreshold
	}
	if cfg.OnsetDuration <= 0 {
		cfg.OnsetDuration = DefaultGateConfig().OnsetDuration
	}
	if cfg.PatienceWindow <= 0 {
		cfg.PatienceWindow = DefaultGateConfig().PatienceWindow
	}
	return &Gate{cfg: cfg}
}

// InSpeech reports whether the gate currently considers the user speaking.
func (g *Gate) InSpeech() bool {
	return g.inSpeech
}

// LastLoud returns the timestamp of the most recent frame above threshold.
func (g *Gate) LastLoud() time.Time {
	return g.lastLoud
}

// Reset clears all detection state.
func (g *Gate) Reset() {
	g.inSpeech = false
	g.speechAccum = 0
	g.silenceAccum = 0
}

// Process inspects one frame and returns zero or one events. The gate keeps
// running during response playback; the orchestrator decides whether a
// SpeechStart there is a barge-in.
func (g *Gate) Process(f audio.Frame) []Event {
	energy := audio.RMS(f.PCM)
	d := f.Duration()

	if energy > g.cfg.VoiceThreshold {
		g.speechAccum += d
		g.silenceAccum = 0
		g.lastLoud = f.Timestamp

		if !g.inSpeech && g.speechAccum >= g.cfg.OnsetDuration {
			g.inSpeech = true
			return []Event{{Type: EventSpeechStart, Timestamp: f.Timestamp}}
		}
		return nil
	}

	g.silenceAccum += d
	g.speechAccum = 0

	if g.inSpeech && g.silenceAccum >= g.cfg.PatienceWindow {
		g.inSpeech = false
		return []Event{{Type: EventSpeechEnd, Timestamp: f.Timestamp}}
	}
	return nil
}
