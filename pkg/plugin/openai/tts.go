package openai

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carevoice/companion/pkg/ai/tts"
	"github.com/carevoice/companion/pkg/voice"
)

// speechSampleRate is fixed by the OpenAI speech API.
const speechSampleRate = 24000

// Synthesizer implements tts.Synthesizer over the speech API. The API
// has no pitch control, so only the style's rate is applied; the soft
// style still comes through the slower delivery.
type Synthesizer struct {
	client *openai.Client
	model  string
	voice  string
}

// NewSynthesizer builds a speech-API synthesizer.
func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	model := cfg.SpeechModel
	if model == "" {
		model = "tts-1"
	}
	v := cfg.SpeechVoice
	if v == "" {
		v = "nova"
	}
	return &Synthesizer{client: cfg.client(), model: model, voice: v}, nil
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string, style voice.Style) (tts.Clip, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          float64(style.Rate),
	})
	if err != nil {
		return tts.Clip{}, wrapErr("synthesize", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return tts.Clip{}, wrapErr("synthesize", err)
	}
	return tts.Clip{Data: data, Format: "wav", SampleRate: speechSampleRate}, nil
}
