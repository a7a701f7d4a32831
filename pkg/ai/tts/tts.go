// Package tts defines the speech-synthesis port. Synthesis is best effort:
// when every provider fails the orchestrator ships a text-only response and
// the conversation continues.
package tts

import (
	"context"
	"log/slog"

	"github.com/carevoice/companion/pkg/ai"
	"github.com/carevoice/companion/pkg/voice"
)

// Clip is one complete synthesized utterance.
type Clip struct {
	Data       []byte
	Format     string // "wav", "mp3"
	SampleRate int
}

// Synthesizer converts reply text into an audio clip styled per the voice
// decision. Implementations must honor ctx cancellation; barge-in aborts
// outstanding synthesis.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, style voice.Style) (Clip, error)
}

// Chain tries synthesizers in declared precedence order under the call
// budget with a single transient retry each. Unlike the reply chain it may
// fail: callers degrade to text-only output.
type Chain struct {
	synths []Synthesizer
	budget ai.CallBudget
	logger *slog.Logger
}

// NewChain builds a synthesis fallback chain.
func NewChain(logger *slog.Logger, synths ...Synthesizer) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{synths: synths, budget: ai.DefaultBudget, logger: logger}
}

func (c *Chain) Synthesize(ctx context.Context, text string, style voice.Style) (Clip, error) {
	var lastErr error = ai.ErrUnconfigured
	for i, s := range c.synths {
		var clip Clip
		err := c.budget.Do(ctx, func(callCtx context.Context) error {
			var synthErr error
			clip, synthErr = s.Synthesize(callCtx, text, style)
			return synthErr
		})
		if err == nil {
			return clip, nil
		}
		if ctx.Err() != nil {
			return Clip{}, ctx.Err()
		}
		c.logger.Warn("synthesizer failed, falling back",
			slog.Int("position", i),
			slog.String("error", err.Error()))
		lastErr = err
	}
	return Clip{}, lastErr
}
