// Package fake provides a deterministic Synthesizer for tests: a short
// sine tone wrapped in a WAV container, length scaled to the text.
package fake

import (
	"context"
	"math"
	"sync"

	"github.com/carevoice/companion/pkg/ai/tts"
	"github.com/carevoice/companion/pkg/audio/wav"
	"github.com/carevoice/companion/pkg/voice"
)

const (
	sampleRate = 24000
	toneHz     = 440.0
)

// FakeSynthesizer generates sine-wave clips. Configure failErr to simulate
// a vendor outage.
type FakeSynthesizer struct {
	mu      sync.Mutex
	failErr error
	calls   int
	styles  []voice.Style
}

// NewFakeSynthesizer creates the fake.
func NewFakeSynthesizer() *FakeSynthesizer {
	return &FakeSynthesizer{}
}

// FailWith makes every subsequent call return err.
func (f *FakeSynthesizer) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

// Calls returns the number of synthesis requests seen.
func (f *FakeSynthesizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Styles returns the style passed to each call, for styling assertions.
func (f *FakeSynthesizer) Styles() []voice.Style {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]voice.Style, len(f.styles))
	copy(out, f.styles)
	return out
}

func (f *FakeSynthesizer) Synthesize(ctx context.Context, text string, style voice.Style) (tts.Clip, error) {
	f.mu.Lock()
	f.calls++
	f.styles = append(f.styles, style)
	failErr := f.failErr
	f.mu.Unlock()

	if failErr != nil {
		return tts.Clip{}, failErr
	}
	if err := ctx.Err(); err != nil {
		return tts.Clip{}, err
	}

	// ~60ms of tone per character, capped at 2s.
	samples := len(text) * sampleRate * 60 / 1000
	if max := sampleRate * 2; samples > max {
		samples = max
	}
	pcm := make([]int16, samples)
	for i := range pcm {
		v := math.Sin(2*math.Pi*toneHz*float64(i)/sampleRate) * 0.3
		pcm[i] = int16(v * math.MaxInt16)
	}

	return tts.Clip{
		Data:       wav.Encode(pcm, sampleRate),
		Format:     "wav",
		SampleRate: sampleRate,
	}, nil
}
