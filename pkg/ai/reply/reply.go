// Package reply defines the response-generation port and the fallback chain
// that guarantees the companion always has something to say.
package reply

import (
	"context"

	"github.com/carevoice/companion/pkg/ai/sentiment"
	"github.com/carevoice/companion/pkg/memory"
)

// Topic is the conversation topic overlay active when the request was made.
// It changes prompt flavor and which follow-up templates apply; it is not a
// separate pipeline.
type Topic string

const (
	TopicNone       Topic = ""
	TopicMedication Topic = "medication_reminder"
	TopicWordOfDay  Topic = "word_of_day"
)

// Request carries everything a generator needs to produce a reply.
type Request struct {
	UserText  string
	Sentiment sentiment.Result
	Context   []memory.Turn
	Topic     Topic

	// System is true for background-event turns: UserText is then a
	// synthetic system prompt seed, not user speech.
	System bool
}

// Generator produces reply text for a request. Implementations may fail;
// the Chain wrapping them may not.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
