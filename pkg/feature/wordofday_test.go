package feature

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestStaticWordsCyclesByDay(t *testing.T) {
	is := is.New(t)

	day := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	src := NewStaticWords(func() time.Time { return day })

	first, err := src.WordOfDay(context.Background())
	is.NoErr(err)
	is.True(first.Word != "")
	is.True(first.Definition != "")

	// Same day, same word.
	again, err := src.WordOfDay(context.Background())
	is.NoErr(err)
	is.Equal(again, first)

	// Next day rotates.
	day = day.AddDate(0, 0, 1)
	next, err := src.WordOfDay(context.Background())
	is.NoErr(err)
	is.True(next.Word != first.Word)
}

func TestWordOfDayIntroduction(t *testing.T) {
	is := is.New(t)

	w := NewWordOfDay()
	word := Word{
		Word:       "petrichor",
		Definition: "the pleasant smell of earth after rain",
		Prompt:     "Do you enjoy the smell after a good rain?",
	}
	intro := w.Introduction(word)
	is.True(strings.Contains(intro, "petrichor"))
	is.True(strings.Contains(intro, word.Definition))
	is.True(strings.Contains(intro, word.Prompt))
}

func TestWordOfDayFollowUp(t *testing.T) {
	word := Word{Word: "halcyon", FollowUp: "Those memories are treasures."}
	cases := []struct {
		name string
		text string
		want string
	}{
		{"positive uses word followup", "Yes, I love that word", word.FollowUp},
		{"negative", "No, I don't care for it",
			"That's okay, we all have different preferences. What do you enjoy instead?"},
		{"story", "It reminds me of summers at the lake",
			"That's a wonderful story. Thank you for sharing that with me."},
	}
	w := NewWordOfDay()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			is.Equal(w.FollowUp(word, tc.text), tc.want)
		})
	}
}
