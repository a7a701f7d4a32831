// Package asr defines the transcription port consumed by the orchestrator.
// An utterance's PCM goes in, text comes out. Empty text is a valid
// "no speech detected" outcome, not an error.
package asr

import (
	"context"
)

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	Text       string
	Confidence float64
}

// NoSpeech reports whether the transcript carries no usable speech.
func (t Transcript) NoSpeech() bool {
	return t.Text == ""
}

// Transcriber converts an utterance's samples into text. Implementations
// must honor ctx cancellation; the orchestrator cancels outstanding calls
// on barge-in and session teardown.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []int16, sampleRate int) (Transcript, error)
}
