// Package sentiment defines the classification port and a lexicon-based
// classifier used when no vendor provider is configured. Sentiment is an
// enrichment, never a gate: classification failure defaults to neutral and
// the pipeline keeps moving.
package sentiment

import (
	"context"
	"strings"
)

// Label is the coarse emotional category used for voice styling and prompts.
type Label string

const (
	Happy   Label = "happy"
	Sad     Label = "sad"
	Neutral Label = "neutral"
)

// Result carries the label plus an intensity score in [-1, 1].
type Result struct {
	Label Label
	Score float64
}

// Classifier maps user text to a sentiment result. Implementations must
// return promptly; the orchestrator bounds every call with a timeout and
// substitutes Neutral on any failure.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// Compound score cutoffs for the three labels.
const (
	happyThreshold = 0.3
	sadThreshold   = -0.3
)

var positiveWords = map[string]struct{}{
	"happy": {}, "good": {}, "great": {}, "love": {}, "excellent": {},
	"nice": {}, "joy": {}, "pleased": {}, "wonderful": {}, "amazing": {},
	"excited": {}, "lovely": {},
}

var negativeWords = map[string]struct{}{
	"sad": {}, "bad": {}, "angry": {}, "hate": {}, "terrible": {},
	"upset": {}, "lonely": {}, "depressed": {}, "miss": {}, "hurt": {},
	"afraid": {}, "worried": {},
}

// Lexicon is a dependency-free classifier that counts positive and negative
// words and maps the balance onto a compound score.
type Lexicon struct{}

// NewLexicon creates a lexicon classifier.
func NewLexicon() *Lexicon {
	return &Lexicon{}
}

func (l *Lexicon) Classify(ctx context.Context, text string) (Result, error) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return Result{Label: Neutral}, nil
	}

	var pos, neg int
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:'\"")
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}

	compound := float64(pos-neg) / float64(len(words))
	// Short utterances carry their sentiment densely; scale so a single
	// mood word in a short sentence still crosses the cutoff.
	compound *= 4
	if compound > 1 {
		compound = 1
	} else if compound < -1 {
		compound = -1
	}

	return Result{Label: labelFor(compound), Score: compound}, nil
}

func labelFor(compound float64) Label {
	switch {
	case compound >= happyThreshold:
		return Happy
	case compound <= sadThreshold:
		return Sad
	default:
		return Neutral
	}
}
