package reply

import (
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/carevoice/companion/pkg/ai/sentiment"
	"github.com/carevoice/companion/pkg/memory"
)

func TestRuleBasedTemplates(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		label     sentiment.Label
		context   []memory.Turn
		wantPiece string
	}{
		{
			name:      "lonely grief",
			text:      "I miss my husband",
			label:     sentiment.Sad,
			wantPiece: "I'm here with you",
		},
		{
			name:      "spouse without loss words",
			text:      "my husband used to sing",
			label:     sentiment.Sad,
			wantPiece: "tell me more about them",
		},
		{
			name:      "generic sad",
			text:      "things feel heavy today",
			label:     sentiment.Sad,
			wantPiece: "I'm here to listen",
		},
		{
			name:      "excited happy",
			text:      "I had a wonderful day",
			label:     sentiment.Happy,
			wantPiece: "That's wonderful to hear",
		},
		{
			name:      "mild happy",
			text:      "the garden is blooming",
			label:     sentiment.Happy,
			wantPiece: "Tell me more",
		},
		{
			name:      "greeting",
			text:      "Hello!",
			label:     sentiment.Neutral,
			wantPiece: "How are you feeling today",
		},
		{
			name:      "asks after companion",
			text:      "How are you doing?",
			label:     sentiment.Neutral,
			wantPiece: "thank you for asking",
		},
		{
			name:      "neutral with history",
			text:      "we went to the market",
			label:     sentiment.Neutral,
			context:   []memory.Turn{{UserText: "earlier"}},
			wantPiece: "Tell me more about that",
		},
		{
			name:      "neutral first exchange",
			text:      "we went to the market",
			label:     sentiment.Neutral,
			wantPiece: "Can you tell me more",
		},
	}

	r := NewRuleBased()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			text, err := r.Generate(context.Background(), Request{
				UserText:  tc.text,
				Sentiment: sentiment.Result{Label: tc.label},
				Context:   tc.context,
			})
			is.NoErr(err)
			is.True(strings.Contains(text, tc.wantPiece))
		})
	}
}

func TestRuleBasedSystemSeedEcho(t *testing.T) {
	is := is.New(t)

	r := NewRuleBased()
	seed := "I noticed it's time for your heart pills."
	text, err := r.Generate(context.Background(), Request{UserText: seed, System: true})
	is.NoErr(err)
	is.Equal(text, seed)

	text, err = r.Generate(context.Background(), Request{System: true})
	is.NoErr(err)
	is.True(text != "")
}
