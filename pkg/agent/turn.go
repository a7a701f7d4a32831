package agent

import (
	"context"
	"errors"

	"github.com/carevoice/companion/pkg/ai/asr"
	"github.com/carevoice/companion/pkg/ai/reply"
	"github.com/carevoice/companion/pkg/ai/sentiment"
	"github.com/carevoice/companion/pkg/feature"
	"github.com/carevoice/companion/pkg/memory"
	"github.com/carevoice/companion/pkg/vad"
	"github.com/carevoice/companion/pkg/voice"
)

// startUserTurn launches the pipeline for one utterance. Loop goroutine
// only.
func (a *Agent) startUserTurn(ctx context.Context, u *vad.Utterance) {
	turnCtx, cancel := context.WithCancel(ctx)
	a.turnCancel = cancel
	a.turnLive = true
	topic := a.topic
	go func() {
		defer cancel()
		out := a.runUserTurn(turnCtx, u, topic)
		a.turnDone <- out
	}()
}

// startNudgeTurn launches an agent-initiated turn: greeting, patience
// prompt follow-through, or a background reminder. Loop goroutine only.
func (a *Agent) startNudgeTurn(ctx context.Context, kind NudgeKind, seed string, opened topicState, record bool) {
	turnCtx, cancel := context.WithCancel(ctx)
	a.turnCancel = cancel
	a.turnLive = true
	go func() {
		defer cancel()
		out := a.runNudgeTurn(turnCtx, kind, seed, record)
		out.opened = opened
		a.turnDone <- out
	}()
}

// runUserTurn is the transcribe, classify, generate, synthesize pipeline
// for one utterance. It runs off the loop goroutine and communicates
// only through emit and its returned outcome.
func (a *Agent) runUserTurn(ctx context.Context, u *vad.Utterance, topic topicState) turnOutcome {
	log := a.cfg.Logger

	a.setState(StateTranscribing)
	a.emit(Output{Type: OutputStatus, Status: StatusProcessing})

	var tr asr.Transcript
	err := a.cfg.Budget.Do(ctx, func(callCtx context.Context) error {
		var terr error
		tr, terr = a.cfg.Transcriber.Transcribe(callCtx, u.PCM(), u.SampleRate())
		return terr
	})
	if cancelled(ctx) {
		return turnOutcome{cancelled: true}
	}
	if err != nil {
		log.Warn("transcription failed", "error", err, "duration", u.Duration())
		return a.patiencePrompt(ctx)
	}
	if tr.NoSpeech() {
		log.Debug("utterance produced no speech", "duration", u.Duration())
		return a.patiencePrompt(ctx)
	}
	a.emit(Output{Type: OutputTranscript, Text: tr.Text})

	a.setState(StateClassifying)
	res := a.classify(ctx, tr.Text)
	if cancelled(ctx) {
		return turnOutcome{cancelled: true}
	}

	a.setState(StateGenerating)
	text, resolved := a.generate(ctx, tr.Text, res, topic)
	if cancelled(ctx) {
		return turnOutcome{cancelled: true}
	}

	turn := memory.Turn{
		UserText:  tr.Text,
		AIText:    text,
		Sentiment: res.Label,
		Score:     res.Score,
		Topic:     string(topic.topic),
	}
	if err := a.cfg.Memory.Append(ctx, turn); err != nil {
		log.Warn("failed to persist turn", "error", err)
	}

	a.emit(Output{Type: OutputResponse, Text: text, Sentiment: res.Label})

	out := a.speak(ctx, text, res.Label)
	out.resolved = resolved
	return out
}

// patiencePrompt handles an empty or failed transcription: the prompt is
// spoken but the exchange is not recorded as a turn.
func (a *Agent) patiencePrompt(ctx context.Context) turnOutcome {
	a.emit(Output{Type: OutputTranscript, Text: "", NoSpeech: true})
	a.emit(Output{Type: OutputNudge, Nudge: NudgePatience, Text: a.cfg.PatiencePrompt})
	return a.speak(ctx, a.cfg.PatiencePrompt, sentiment.Neutral)
}

// runNudgeTurn speaks agent-initiated text. The seed runs through the
// reply generator as a system request so an LLM backend may rephrase it;
// the rule fallback echoes it verbatim.
func (a *Agent) runNudgeTurn(ctx context.Context, kind NudgeKind, seed string, record bool) turnOutcome {
	a.setState(StateGenerating)
	a.emit(Output{Type: OutputStatus, Status: StatusProcessing})

	req := reply.Request{
		UserText: seed,
		Context:  a.cfg.Memory.Recent(memory.DefaultWindow),
		System:   true,
	}
	text, err := a.cfg.Generator.Generate(ctx, req)
	if err != nil || text == "" {
		text = seed
	}
	if cancelled(ctx) {
		return turnOutcome{cancelled: true}
	}

	if record {
		turn := memory.Turn{AIText: text, Sentiment: sentiment.Neutral, Topic: string(kind)}
		if err := a.cfg.Memory.Append(ctx, turn); err != nil {
			a.cfg.Logger.Warn("failed to persist nudge turn", "error", err)
		}
	}

	a.emit(Output{Type: OutputNudge, Nudge: kind, Text: text})
	return a.speak(ctx, text, sentiment.Neutral)
}

// classify never fails the turn: any error degrades to Neutral.
func (a *Agent) classify(ctx context.Context, text string) sentiment.Result {
	var res sentiment.Result
	err := a.cfg.Budget.Do(ctx, func(callCtx context.Context) error {
		var cerr error
		res, cerr = a.cfg.Classifier.Classify(callCtx, text)
		return cerr
	})
	if err != nil {
		a.cfg.Logger.Warn("sentiment classification failed, assuming neutral", "error", err)
		return sentiment.Result{Label: sentiment.Neutral}
	}
	return res
}

// generate produces the reply text. An active topic short-circuits to
// the feature handler; otherwise the chain runs and never fails.
func (a *Agent) generate(ctx context.Context, userText string, res sentiment.Result, topic topicState) (string, bool) {
	switch topic.topic {
	case reply.TopicMedication:
		resp := a.cfg.Medication.Classify(userText)
		if resp != feature.MedicationUnclear {
			text, resolved := a.cfg.Medication.FollowUp(resp, topic.med)
			return text, resolved
		}
		// Unclear answers fall through to the generator with the topic
		// attached so the reminder can be restated in context.
	case reply.TopicWordOfDay:
		return a.cfg.WordOfDay.FollowUp(topic.word, userText), true
	}

	req := reply.Request{
		UserText:  userText,
		Sentiment: res,
		Context:   a.cfg.Memory.Recent(memory.DefaultWindow),
		Topic:     topic.topic,
	}
	text, err := a.cfg.Generator.Generate(ctx, req)
	if err != nil || text == "" {
		// The chain guarantees a reply; a bare generator may not.
		a.cfg.Logger.Warn("reply generation failed, using apology", "error", err)
		text = reply.Apology
	}
	return text, false
}

// speak synthesizes and emits the clip. Synthesis failure is not a turn
// failure: the text already went out, the agent just stays silent.
func (a *Agent) speak(ctx context.Context, text string, label sentiment.Label) turnOutcome {
	if a.cfg.Synthesizer == nil {
		return turnOutcome{}
	}

	a.setState(StateSynthesizing)
	style := voice.Select(label, a.cfg.Clock().Hour(), a.cfg.Styling)

	clip, err := a.cfg.Synthesizer.Synthesize(ctx, text, style)
	if cancelled(ctx) {
		return turnOutcome{cancelled: true}
	}
	if err != nil {
		a.cfg.Logger.Warn("synthesis failed, text-only reply", "error", err, "style", style.ID)
		a.emit(Output{Type: OutputError, Err: "speech synthesis unavailable"})
		return turnOutcome{}
	}

	a.emit(Output{Type: OutputAudio, Clip: clip})
	return turnOutcome{speak: true}
}

func cancelled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
