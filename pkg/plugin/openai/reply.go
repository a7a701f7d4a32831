package openai

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carevoice/companion/pkg/ai/reply"
	"github.com/carevoice/companion/pkg/ai/sentiment"
)

const systemPrompt = `You are a warm, patient voice companion for an elderly person.
Reply in one or two short sentences of plain spoken language.
Never mention that you are an AI. Ask gentle follow-up questions.
If the person seems sad or lonely, acknowledge the feeling before anything else.`

// Generator implements reply.Generator over the chat completions API.
type Generator struct {
	client *openai.Client
	model  string
}

// NewGenerator builds a chat-backed reply generator. Point Config.BaseURL
// at a Groq or compatible endpoint to use a different vendor.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	model := cfg.ChatModel
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Generator{client: cfg.client(), model: model}, nil
}

func (g *Generator) Generate(ctx context.Context, req reply.Request) (string, error) {
	messages := buildMessages(req)
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   120,
		Temperature: 0.7,
	})
	if err != nil {
		return "", wrapErr("generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", wrapErr("generate", errNoChoices)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildMessages(req reply.Request) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if hint := topicHint(req); hint != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: hint,
		})
	}
	for _, turn := range req.Context {
		if turn.UserText != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleUser, Content: turn.UserText,
			})
		}
		if turn.AIText != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant, Content: turn.AIText,
			})
		}
	}
	if req.System {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem,
			Content: "Deliver this message to the person in your own warm words, keeping its meaning: " +
				req.UserText,
		})
		return messages
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: req.UserText,
	})
	return messages
}

func topicHint(req reply.Request) string {
	switch req.Topic {
	case reply.TopicMedication:
		return "A medication reminder is pending. Gently find out whether they have taken it."
	case reply.TopicWordOfDay:
		return "You just shared a word of the day. Keep the conversation on that word."
	}
	if req.Sentiment.Label == sentiment.Sad {
		return "The person sounds sad right now."
	}
	return ""
}

type constError string

func (e constError) Error() string { return string(e) }

const errNoChoices = constError("no completion choices returned")
