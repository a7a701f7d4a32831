package reply

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/carevoice/companion/pkg/ai"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fixed(text string, err error) Generator {
	return GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		return text, err
	})
}

func TestChainFirstHealthyWins(t *testing.T) {
	is := is.New(t)

	c := NewChain(quietLogger(),
		fixed("primary reply", nil),
		fixed("secondary reply", nil),
	)
	text, err := c.Generate(context.Background(), Request{UserText: "hello"})
	is.NoErr(err)
	is.Equal(text, "primary reply")
}

func TestChainFallsBackOnFailure(t *testing.T) {
	is := is.New(t)

	c := NewChain(quietLogger(),
		fixed("", ai.Fatal("generate", context.Canceled)),
		fixed("secondary reply", nil),
	)
	text, err := c.Generate(context.Background(), Request{UserText: "hello"})
	is.NoErr(err)
	is.Equal(text, "secondary reply")
}

func TestChainSkipsEmptyText(t *testing.T) {
	is := is.New(t)

	c := NewChain(quietLogger(),
		fixed("   ", nil),
		fixed("real reply", nil),
	)
	text, err := c.Generate(context.Background(), Request{UserText: "hello"})
	is.NoErr(err)
	is.Equal(text, "real reply")
}

func TestChainRetriesTransientOnce(t *testing.T) {
	is := is.New(t)

	calls := 0
	flaky := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		calls++
		if calls == 1 {
			return "", ai.Transient("generate", context.DeadlineExceeded)
		}
		return "recovered", nil
	})
	c := NewChain(quietLogger(), flaky)
	c.budget = ai.CallBudget{Timeout: time.Second, RetryDelay: time.Millisecond}

	text, err := c.Generate(context.Background(), Request{UserText: "hello"})
	is.NoErr(err)
	is.Equal(text, "recovered")
	is.Equal(calls, 2)
}

func TestChainApologyWhenEverythingFails(t *testing.T) {
	is := is.New(t)

	c := NewChain(quietLogger(),
		fixed("", ai.Fatal("generate", context.Canceled)),
		fixed("", ai.Fatal("generate", context.Canceled)),
	)
	text, err := c.Generate(context.Background(), Request{UserText: "hello"})
	is.NoErr(err) // the chain never surfaces an error
	is.Equal(text, Apology)
}

func TestChainWithRuleBasedTailNeverApologizesForGreetings(t *testing.T) {
	is := is.New(t)

	c := NewChain(quietLogger(),
		fixed("", ai.Fatal("generate", context.Canceled)),
		NewRuleBased(),
	)
	text, err := c.Generate(context.Background(), Request{UserText: "Hello there"})
	is.NoErr(err)
	is.True(text != Apology)
	is.True(text != "")
}
