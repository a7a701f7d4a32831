package openai

import (
	"bytes"
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carevoice/companion/pkg/ai/asr"
	"github.com/carevoice/companion/pkg/audio/wav"
)

// Transcriber implements asr.Transcriber against the Whisper audio API.
type Transcriber struct {
	client *openai.Client
	model  string
}

// NewTranscriber builds a Whisper-backed transcriber.
func NewTranscriber(cfg Config) (*Transcriber, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	model := cfg.WhisperModel
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{client: cfg.client(), model: model}, nil
}

func (t *Transcriber) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (asr.Transcript, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav.Encode(pcm, sampleRate)),
	})
	if err != nil {
		return asr.Transcript{}, wrapErr("transcribe", err)
	}
	return asr.Transcript{Text: strings.TrimSpace(resp.Text), Confidence: 1}, nil
}
