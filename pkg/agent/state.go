package agent

// State is the conversation state machine's current phase. Transitions are
// driven exclusively by the agent's run loop; reads may happen from any
// goroutine.
type State int32

const (
	StateIdle State = iota
	StateTranscribing
	StateClassifying
	StateGenerating
	StateSynthesizing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTranscribing:
		return "transcribing"
	case StateClassifying:
		return "classifying"
	case StateGenerating:
		return "generating"
	case StateSynthesizing:
		return "synthesizing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}
