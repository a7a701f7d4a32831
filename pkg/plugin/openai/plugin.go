// Package openai adapts OpenAI-compatible APIs to the companion's
// transcription, reply and synthesis interfaces. Setting BaseURL points
// the same adapters at any compatible vendor (Groq, Azure, a local
// gateway).
package openai

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carevoice/companion/pkg/ai"
)

// Config selects the vendor endpoint and models.
type Config struct {
	APIKey  string
	BaseURL string // empty means api.openai.com

	// WhisperModel for transcription. Default whisper-1.
	WhisperModel string
	// ChatModel for reply generation. Default gpt-4o-mini.
	ChatModel string
	// SpeechModel and SpeechVoice for synthesis. Defaults tts-1, nova.
	SpeechModel string
	SpeechVoice string
}

func (c Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("openai: API key is required")
	}
	return nil
}

func (c Config) client() *openai.Client {
	cfg := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// wrapErr classifies a vendor failure for the retry policy: rate limits
// and server errors are worth one retry, everything else is not.
func wrapErr(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return ai.Transient(op, err)
		default:
			return ai.Fatal(op, err)
		}
	}
	// Connection resets, timeouts and the like.
	return ai.Transient(op, err)
}
