package feature

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Word is one cognitive-exercise entry.
type Word struct {
	Word       string
	Definition string
	Prompt     string
	FollowUp   string
}

// WordSource supplies the day's word. The LLM-backed source may fail; the
// static source never does.
type WordSource interface {
	WordOfDay(ctx context.Context) (Word, error)
}

// StaticWords cycles through a fixed list by day of year, so the exercise
// works with no LLM configured and repeats on a long period.
type StaticWords struct {
	words []Word
	now   func() time.Time
}

// NewStaticWords creates the fallback source. A nil clock uses time.Now.
func NewStaticWords(now func() time.Time) *StaticWords {
	if now == nil {
		now = time.Now
	}
	return &StaticWords{words: defaultWords, now: now}
}

func (s *StaticWords) WordOfDay(ctx context.Context) (Word, error) {
	return s.words[s.now().YearDay()%len(s.words)], nil
}

var defaultWords = []Word{
	{
		Word:       "serendipity",
		Definition: "finding something good without looking for it",
		Prompt:     "Have you ever stumbled onto something wonderful by accident?",
		FollowUp:   "That's a lovely bit of serendipity. Tell me more about it.",
	},
	{
		Word:       "petrichor",
		Definition: "the pleasant smell of earth after rain",
		Prompt:     "Do you enjoy the smell after a good rain?",
		FollowUp:   "There's something calming about it, isn't there?",
	},
	{
		Word:       "wanderlust",
		Definition: "a strong desire to travel and explore",
		Prompt:     "Is there a place you've always wanted to visit?",
		FollowUp:   "That sounds like a wonderful trip. What draws you there?",
	},
	{
		Word:       "mellifluous",
		Definition: "a sound that is sweet and pleasant to hear",
		Prompt:     "Is there a voice or a song you find especially soothing?",
		FollowUp:   "Music like that stays with us. When did you first hear it?",
	},
	{
		Word:       "halcyon",
		Definition: "a peaceful, happy time remembered fondly",
		Prompt:     "What's a halcyon time from your life you like to think back on?",
		FollowUp:   "Those memories are treasures. Thank you for sharing that one.",
	},
}

// WordOfDay handles the word-of-day topic.
type WordOfDay struct{}

// NewWordOfDay creates the handler.
func NewWordOfDay() *WordOfDay {
	return &WordOfDay{}
}

// Introduction builds the nudge text introducing the word.
func (w *WordOfDay) Introduction(word Word) string {
	return fmt.Sprintf("I learned a new word today: '%s'. It means %s. %s", word.Word, word.Definition, word.Prompt)
}

// FollowUp builds the reply to the user's reaction. The topic resolves
// after one exchange.
func (w *WordOfDay) FollowUp(word Word, userText string) string {
	text := strings.ToLower(userText)
	switch {
	case containsAny(text, "yes", "love", "like", "enjoy"):
		return word.FollowUp
	case containsAny(text, "no", "don't", "not"):
		return "That's okay, we all have different preferences. What do you enjoy instead?"
	default:
		return "That's a wonderful story. Thank you for sharing that with me."
	}
}
