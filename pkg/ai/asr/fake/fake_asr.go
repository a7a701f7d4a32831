// Package fake provides a scripted Transcriber for tests.
package fake

import (
	"context"
	"sync"

	"github.com/carevoice/companion/pkg/ai/asr"
)

// DefaultTranscript is returned when no script is provided.
const DefaultTranscript = "This is a fake transcript from the fake ASR provider."

// FakeTranscriber returns scripted transcripts in order, repeating the last
// one once the script is exhausted. An empty string in the script simulates
// a no-speech result.
type FakeTranscriber struct {
	mu      sync.Mutex
	script  []string
	call    int
	failErr error
	delay   chan struct{} // when set, Transcribe blocks until closed or ctx done
}

// NewFakeTranscriber creates a scripted transcriber.
func NewFakeTranscriber(script ...string) *FakeTranscriber {
	if len(script) == 0 {
		script = []string{DefaultTranscript}
	}
	return &FakeTranscriber{script: script}
}

// FailWith makes every subsequent call return err.
func (f *FakeTranscriber) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

// BlockUntil makes calls block until release is closed, for cancellation tests.
func (f *FakeTranscriber) BlockUntil(release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = release
}

// Calls returns how many transcriptions were requested.
func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.call
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (asr.Transcript, error) {
	f.mu.Lock()
	f.call++
	idx := f.call - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	text := f.script[idx]
	failErr := f.failErr
	delay := f.delay
	f.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return asr.Transcript{}, ctx.Err()
		}
	}
	if failErr != nil {
		return asr.Transcript{}, failErr
	}
	return asr.Transcript{Text: text, Confidence: 0.95}, nil
}
