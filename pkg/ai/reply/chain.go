package reply

import (
	"context"
	"log/slog"
	"strings"

	"github.com/carevoice/companion/pkg/ai"
)

// Chain tries generators in declared precedence order until one produces
// non-empty text. Each vendor generator runs under the call budget with a
// single transient retry. The final element should be RuleBased so the
// chain as a whole cannot fail; if every element somehow declines, the
// apology goes out.
type Chain struct {
	generators []Generator
	budget     ai.CallBudget
	logger     *slog.Logger
}

// NewChain builds a fallback chain. Order is precedence: first entry wins
// when healthy.
func NewChain(logger *slog.Logger, generators ...Generator) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		generators: generators,
		budget:     ai.DefaultBudget,
		logger:     logger,
	}
}

// Generate returns reply text. The error result exists to satisfy the
// Generator interface; it is always nil.
func (c *Chain) Generate(ctx context.Context, req Request) (string, error) {
	for i, g := range c.generators {
		var text string
		err := c.budget.Do(ctx, func(callCtx context.Context) error {
			var genErr error
			text, genErr = g.Generate(callCtx, req)
			return genErr
		})
		if err != nil {
			c.logger.Warn("reply generator failed, falling back",
				slog.Int("position", i),
				slog.String("error", err.Error()))
			continue
		}
		if strings.TrimSpace(text) == "" {
			c.logger.Warn("reply generator returned empty text, falling back",
				slog.Int("position", i))
			continue
		}
		return text, nil
	}
	return Apology, nil
}
