// Package ollama adapts a local Ollama server to the companion's reply
// interface. It is typically chained ahead of the rule-based fallback so
// conversations degrade gracefully when the model is unavailable.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/carevoice/companion/pkg/ai"
	"github.com/carevoice/companion/pkg/ai/reply"
)

const defaultSystemPrompt = `You are a warm, patient voice companion for an elderly person.
Reply in one or two short sentences of plain spoken language.
Never mention that you are an AI.`

// Config for the local model endpoint.
type Config struct {
	// Host of the Ollama server, e.g. http://localhost:11434.
	Host string
	// Model name, e.g. "gemma3:1b".
	Model string
	// SystemPrompt overrides the default companion persona.
	SystemPrompt string
}

// Generator implements reply.Generator against a local Ollama server.
type Generator struct {
	client *api.Client
	model  string
	system string
}

// NewGenerator builds the client. Connection pooling is tuned for
// repeated low-latency requests to a local server.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama: model is required")
	}
	parsed, err := url.Parse(strings.TrimSuffix(cfg.Host, "/"))
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid host: %w", err)
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return &Generator{
		client: api.NewClient(parsed, httpClient),
		model:  cfg.Model,
		system: system,
	}, nil
}

// HealthCheck verifies the server is reachable.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if err := g.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama: cannot reach server: %w", err)
	}
	return nil
}

func (g *Generator) Generate(ctx context.Context, req reply.Request) (string, error) {
	messages := make([]api.Message, 0, len(req.Context)*2+2)
	messages = append(messages, api.Message{Role: "system", Content: g.system})
	for _, turn := range req.Context {
		if turn.UserText != "" {
			messages = append(messages, api.Message{Role: "user", Content: turn.UserText})
		}
		if turn.AIText != "" {
			messages = append(messages, api.Message{Role: "assistant", Content: turn.AIText})
		}
	}
	if req.System {
		messages = append(messages, api.Message{
			Role: "system",
			Content: "Deliver this message to the person in your own warm words, keeping its meaning: " +
				req.UserText,
		})
	} else {
		messages = append(messages, api.Message{Role: "user", Content: req.UserText})
	}

	stream := false
	var response api.ChatResponse
	err := g.client.Chat(ctx, &api.ChatRequest{
		Model:    g.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": 0.7,
			"num_predict": 150,
		},
	}, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		// A local server that is down or overloaded may come back; let
		// the chain retry once before falling through.
		return "", ai.Transient("ollama chat", err)
	}
	return strings.TrimSpace(response.Message.Content), nil
}
