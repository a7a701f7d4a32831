package vad

import (
	"testing"
	"time"

	"github.com/carevoice/companion/pkg/audio"
)

func runPipeline(p *Pipeline, frames []audio.Frame) (events []Event, utts []*Utterance) {
	for _, f := range frames {
		evs, utt := p.Process(f)
		events = append(events, evs...)
		if utt != nil {
			utts = append(utts, utt)
		}
	}
	return events, utts
}

func TestPipelineFullUtterance(t *testing.T) {
	p := NewPipeline(DefaultGateConfig(), DefaultAssemblerConfig(), nil)

	script := append(repeat(8000, 30), repeat(0, 110)...)
	events, utts := runPipeline(p, frameStream(t, script))

	if len(events) != 2 {
		t.Fatalf("events = %v", events)
	}
	if len(utts) != 1 {
		t.Fatalf("got %d utterances, want 1", len(utts))
	}
	// The utterance includes preroll from before the onset debounce, so
	// the spoken audio is fully covered.
	if utts[0].Duration() < 500*time.Millisecond {
		t.Errorf("utterance too short: %v", utts[0].Duration())
	}
	if p.InSpeech() {
		t.Error("pipeline should be out of speech after finalize")
	}
}

func TestPipelineGapResetsGate(t *testing.T) {
	p := NewPipeline(DefaultGateConfig(), DefaultAssemblerConfig(), nil)
	frames := frameStream(t, repeat(8000, 40))

	for _, f := range frames[:20] {
		p.Process(f)
	}
	if !p.InSpeech() {
		t.Fatal("expected speech")
	}

	// Drop frames 20-29; the gap must discard and reset.
	_, utt := p.Process(frames[30])
	if utt != nil {
		t.Fatal("gap frame must not produce an utterance")
	}
	if p.InSpeech() {
		t.Error("gate should reset after a gap")
	}
}

func TestPipelineFlush(t *testing.T) {
	p := NewPipeline(DefaultGateConfig(), DefaultAssemblerConfig(), nil)

	// Speech with no trailing silence stays open until flushed.
	_, utts := runPipeline(p, frameStream(t, repeat(8000, 30)))
	if len(utts) != 0 {
		t.Fatalf("nothing should finalize yet, got %d", len(utts))
	}

	utt := p.Flush()
	if utt == nil {
		t.Fatal("flush should finalize the open utterance")
	}
	if p.Flush() != nil {
		t.Error("second flush should be a no-op")
	}
}

func TestPipelineSilenceProducesNothing(t *testing.T) {
	p := NewPipeline(DefaultGateConfig(), DefaultAssemblerConfig(), nil)
	events, utts := runPipeline(p, frameStream(t, repeat(0, 200)))
	if len(events) != 0 || len(utts) != 0 {
		t.Fatalf("silence produced events=%v utts=%d", events, len(utts))
	}
	if p.Flush() != nil {
		t.Error("nothing to flush after pure silence")
	}
}
