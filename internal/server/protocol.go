package server

import (
	"encoding/base64"

	"github.com/carevoice/companion/pkg/agent"
)

// Inbound is a client JSON control message. Audio travels as binary
// frames, not JSON.
type Inbound struct {
	Type string `json:"type"`
}

// Client control message types.
const (
	inEndOfUtterance = "end_of_utterance"
	inPlaybackDone   = "playback_done"
	inStop           = "stop"
	inPing           = "ping"
)

// Outbound is one server JSON message. Fields are omitted when empty so
// every message type shares a single shape on the wire.
type Outbound struct {
	Type       string `json:"type"`
	Status     string `json:"status,omitempty"`
	Text       string `json:"text,omitempty"`
	NoSpeech   bool   `json:"no_speech,omitempty"`
	Sentiment  string `json:"sentiment,omitempty"`
	Data       string `json:"data,omitempty"` // base64 audio payload
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Message    string `json:"message,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

var pong = Outbound{Type: "pong"}

// encode maps an agent output onto the wire protocol. Greeting nudges go
// out as plain responses; the client does not treat them specially.
func encode(out agent.Output) Outbound {
	switch out.Type {
	case agent.OutputStatus:
		return Outbound{Type: "status", Status: string(out.Status)}
	case agent.OutputTranscript:
		return Outbound{Type: "transcript", Text: out.Text, NoSpeech: out.NoSpeech}
	case agent.OutputResponse:
		return Outbound{Type: "response", Text: out.Text, Sentiment: string(out.Sentiment)}
	case agent.OutputAudio:
		return Outbound{
			Type:       "audio",
			Data:       base64.StdEncoding.EncodeToString(out.Clip.Data),
			Format:     out.Clip.Format,
			SampleRate: out.Clip.SampleRate,
		}
	case agent.OutputNudge:
		if out.Nudge == agent.NudgeGreeting {
			return Outbound{Type: "response", Text: out.Text}
		}
		return Outbound{Type: string(out.Nudge), Text: out.Text}
	case agent.OutputError:
		return Outbound{Type: "error", Message: out.Err}
	default:
		return Outbound{Type: "error", Message: "unknown output"}
	}
}
