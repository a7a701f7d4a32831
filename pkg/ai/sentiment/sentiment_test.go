package sentiment

import (
	"context"
	"testing"
)

func TestLexiconClassify(t *testing.T) {
	l := NewLexicon()

	tests := []struct {
		name string
		text string
		want Label
	}{
		{"happy", "What a wonderful day, I feel great", Happy},
		{"sad", "I miss my husband so much", Sad},
		{"lonely", "I have been so lonely lately", Sad},
		{"neutral", "The mail came at noon today", Neutral},
		{"empty", "", Neutral},
		{"punctuation stripped", "Lovely!", Happy},
		{"mixed cancels out in long text", "happy sad and then some more words that go on and on and on here", Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Classify(context.Background(), tt.text)
			if err != nil {
				t.Fatal(err)
			}
			if got.Label != tt.want {
				t.Errorf("Classify(%q) = %s (%.2f), want %s", tt.text, got.Label, got.Score, tt.want)
			}
		})
	}
}

func TestLexiconScoreBounds(t *testing.T) {
	l := NewLexicon()
	got, err := l.Classify(context.Background(), "happy happy wonderful lovely")
	if err != nil {
		t.Fatal(err)
	}
	if got.Score > 1 || got.Score < -1 {
		t.Fatalf("score %f out of [-1, 1]", got.Score)
	}
	if got.Score != 1 {
		t.Errorf("all-positive text should clamp to 1, got %f", got.Score)
	}
}
