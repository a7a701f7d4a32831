package agent

import (
	"github.com/carevoice/companion/pkg/ai/sentiment"
	"github.com/carevoice/companion/pkg/ai/tts"
)

// OutputType identifies what a transport should do with an Output.
type OutputType int

const (
	// OutputStatus reports a coarse agent status change.
	OutputStatus OutputType = iota
	// OutputTranscript carries the user's recognized text.
	OutputTranscript
	// OutputResponse carries the agent's reply text.
	OutputResponse
	// OutputAudio carries a synthesized clip ready for playback.
	OutputAudio
	// OutputNudge carries agent-initiated text: patience prompts and
	// background reminder turns.
	OutputNudge
	// OutputError reports a recoverable failure the client may surface.
	OutputError
)

func (t OutputType) String() string {
	switch t {
	case OutputStatus:
		return "status"
	case OutputTranscript:
		return "transcript"
	case OutputResponse:
		return "response"
	case OutputAudio:
		return "audio"
	case OutputNudge:
		return "nudge"
	case OutputError:
		return "error"
	default:
		return "unknown"
	}
}

// Status values reported via OutputStatus.
type Status string

const (
	StatusListening  Status = "listening"
	StatusProcessing Status = "processing"
	StatusSpeaking   Status = "ai_speaking"
)

// NudgeKind distinguishes agent-initiated messages.
type NudgeKind string

const (
	NudgePatience   NudgeKind = "patience_prompt"
	NudgeMedication NudgeKind = "medication_nudge"
	NudgeWordOfDay  NudgeKind = "word_of_day"
	NudgeGreeting   NudgeKind = "greeting"
)

// Output is a single event emitted by the agent for its transport to
// deliver. Only the fields relevant to Type are populated.
type Output struct {
	Type      OutputType
	Status    Status
	Text      string
	NoSpeech  bool
	Sentiment sentiment.Label
	Clip      tts.Clip
	Nudge     NudgeKind
	Err       string
}
