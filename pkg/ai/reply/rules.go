package reply

import (
	"context"
	"strings"

	"github.com/carevoice/companion/pkg/ai/sentiment"
)

// Apology is the terminal response when even rule matching has nothing
// better; the companion never goes silent.
const Apology = "I'm here to listen. Can you tell me more about that?"

// RuleBased is the deterministic local generator at the end of every chain.
// It never returns an error and never returns empty text.
type RuleBased struct{}

// NewRuleBased creates the rule-based generator.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

func (r *RuleBased) Generate(ctx context.Context, req Request) (string, error) {
	msg := strings.ToLower(req.UserText)

	if req.System {
		// Background-event seeds are already template text; echo them so a
		// nudge still goes out when no LLM is configured.
		if req.UserText != "" {
			return req.UserText, nil
		}
		return "I was just thinking of you. How are you doing?", nil
	}

	switch req.Sentiment.Label {
	case sentiment.Sad:
		switch {
		case containsAny(msg, "miss", "lonely", "sad", "depressed"):
			return "I'm here with you. It's okay to feel this way. Would you like to talk about what's on your mind? I'm listening.", nil
		case containsAny(msg, "husband", "wife", "spouse", "partner"):
			return "They sound like a wonderful person. Would you like to tell me more about them? I'd love to hear your memories.", nil
		default:
			return "I understand. Sometimes it helps to talk about things. I'm here to listen whenever you need me.", nil
		}
	case sentiment.Happy:
		if containsAny(msg, "great", "wonderful", "amazing", "excited") {
			return "That's wonderful to hear! I'm so glad you're feeling good. What made you happy today?", nil
		}
		return "That sounds lovely! Tell me more about what's making you happy.", nil
	}

	if containsAny(msg, "hello", "hi ", "hey", "good morning", "good afternoon", "good evening") || msg == "hi" {
		return "Hello! It's so good to hear from you. How are you feeling today?", nil
	}
	if strings.Contains(msg, "how are you") || strings.Contains(msg, "how's your day") {
		return "I'm doing well, thank you for asking! I've been thinking about you. How has your day been so far?", nil
	}

	if len(req.Context) > 0 {
		return "That's interesting. Tell me more about that. I'm here to listen.", nil
	}
	return "I'd love to hear more about that. Can you tell me more?", nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
