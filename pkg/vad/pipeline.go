package vad

import (
	"log/slog"

	"github.com/carevoice/companion/pkg/audio"
)

// Pipeline couples a gate and an assembler into the per-session ingest
// stage: frames in, gate events and finalized utterances out. Synchronous;
// the session's ingest goroutine drives it and forwards the results to the
// orchestrator's channels.
type Pipeline struct {
	gate   *Gate
	asm    *Assembler
	logger *slog.Logger
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(gateCfg GateConfig, asmCfg AssemblerConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		gate:   NewGate(gateCfg),
		asm:    NewAssembler(asmCfg),
		logger: logger,
	}
}

// Process runs one frame through detection and assembly. The returned
// events always precede the returned utterance in causal order.
func (p *Pipeline) Process(f audio.Frame) ([]Event, *Utterance) {
	events := p.gate.Process(f)

	var utt *Utterance
	for _, ev := range events {
		switch ev.Type {
		case EventSpeechStart:
			p.asm.Open(ev.Timestamp)
		case EventSpeechEnd:
			utt = p.asm.Finalize(ev.Timestamp)
		}
	}

	if utt == nil {
		forced, ok := p.asm.Append(f)
		if !ok {
			p.logger.Warn("frame sequence gap, discarding utterance",
				slog.Uint64("seq", f.Seq))
			p.gate.Reset()
			return events, nil
		}
		if forced != nil {
			p.logger.Warn("utterance hit max duration, forcing finalize",
				slog.Duration("duration", forced.Duration()))
			utt = forced
		}
	}

	return events, utt
}

// Flush finalizes any open utterance immediately. Used by the explicit
// end-of-utterance client signal, the fallback path when client-side VAD
// decides the turn is over.
func (p *Pipeline) Flush() *Utterance {
	if !p.asm.Buffering() {
		return nil
	}
	p.gate.Reset()
	return p.asm.Finalize(p.gate.LastLoud())
}

// InSpeech reports whether the gate currently detects speech.
func (p *Pipeline) InSpeech() bool {
	return p.gate.InSpeech()
}
