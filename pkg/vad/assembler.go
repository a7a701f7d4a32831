package vad

import (
	"time"

	"github.com/carevoice/companion/pkg/audio"
)

// Utterance is the ordered frame sequence between SpeechStart and finalize.
// Owned exclusively by the assembler until handed to the orchestrator,
// after which the assembler forgets it.
type Utterance struct {
	Frames []audio.Frame
	Start  time.Time
	End    time.Time
}

// PCM concatenates the frame samples in order.
func (u *Utterance) PCM() []int16 {
	var n int
	for _, f := range u.Frames {
		n += len(f.PCM)
	}
	pcm := make([]int16, 0, n)
	for _, f := range u.Frames {
		pcm = append(pcm, f.PCM...)
	}
	return pcm
}

// SampleRate returns the utterance's sample rate, zero if empty.
func (u *Utterance) SampleRate() int {
	if len(u.Frames) == 0 {
		return 0
	}
	return u.Frames[0].SampleRate
}

// Duration returns the audio duration covered by the buffered frames.
func (u *Utterance) Duration() time.Duration {
	var d time.Duration
	for _, f := range u.Frames {
		d += f.Duration()
	}
	return d
}

// AssemblerConfig bounds the utterance buffer.
type AssemblerConfig struct {
	// MaxDuration forces an early finalize so a stuck-open gate cannot
	// grow the buffer without bound.
	MaxDuration time.Duration

	// PrerollFrames is how many recent frames are kept while idle and
	// spliced in on open, so onset audio consumed by the debounce is not
	// lost from the utterance.
	PrerollFrames int
}

// DefaultAssemblerConfig returns the stock bounds.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		MaxDuration:   30 * time.Second,
		PrerollFrames: 10,
	}
}

// Assembler buffers frames between gate events. Not safe for concurrent
// use; it shares the session's single ingest goroutine with the gate.
type Assembler struct {
	cfg AssemblerConfig

	buffering bool
	frames    []audio.Frame
	start     time.Time
	lastSeq   uint64
	duration  time.Duration

	preroll []audio.Frame
}

// NewAssembler creates an assembler.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultAssemblerConfig().MaxDuration
	}
	if cfg.PrerollFrames < 0 {
		cfg.PrerollFrames = 0
	}
	return &Assembler{cfg: cfg}
}

// Buffering reports whether an utterance is currently open.
func (a *Assembler) Buffering() bool {
	return a.buffering
}

// Open starts a new utterance at ts, seeded with the preroll frames.
func (a *Assembler) Open(ts time.Time) {
	a.buffering = true
	a.start = ts
	a.frames = a.frames[:0]
	a.duration = 0
	for _, f := range a.preroll {
		a.frames = append(a.frames, f)
		a.duration += f.Duration()
		a.lastSeq = f.Seq
	}
	a.preroll = a.preroll[:0]
	if len(a.frames) > 0 {
		a.start = a.frames[0].Timestamp
	}
}

// Append adds a frame to the open utterance. It returns a forced utterance
// when the buffer hits MaxDuration, and ok=false when a sequence gap was
// detected: the buffer is then discarded and the caller must reset the gate
// rather than transcribe corrupted audio.
func (a *Assembler) Append(f audio.Frame) (forced *Utterance, ok bool) {
	if !a.buffering {
		a.pushPreroll(f)
		return nil, true
	}

	if len(a.frames) > 0 && f.Seq != a.lastSeq+1 {
		a.Discard()
		return nil, false
	}

	a.frames = append(a.frames, f)
	a.lastSeq = f.Seq
	a.duration += f.Duration()

	if a.duration >= a.cfg.MaxDuration {
		utt := a.take(f.Timestamp)
		// Speech may still be running; keep buffering into a fresh window.
		a.buffering = true
		a.start = f.Timestamp
		return utt, true
	}
	return nil, true
}

// Finalize closes the open utterance and returns it, or nil if nothing was
// buffered.
func (a *Assembler) Finalize(ts time.Time) *Utterance {
	if !a.buffering || len(a.frames) == 0 {
		a.Discard()
		return nil
	}
	utt := a.take(ts)
	a.buffering = false
	return utt
}

// Discard drops any open buffer without producing an utterance.
func (a *Assembler) Discard() {
	a.buffering = false
	a.frames = a.frames[:0]
	a.duration = 0
}

func (a *Assembler) take(end time.Time) *Utterance {
	frames := make([]audio.Frame, len(a.frames))
	copy(frames, a.frames)
	utt := &Utterance{Frames: frames, Start: a.start, End: end}
	a.frames = a.frames[:0]
	a.duration = 0
	return utt
}

func (a *Assembler) pushPreroll(f audio.Frame) {
	if a.cfg.PrerollFrames == 0 {
		return
	}
	// Drop preroll continuity across a gap; stale frames must not be
	// spliced into the next utterance.
	if len(a.preroll) > 0 && f.Seq != a.preroll[len(a.preroll)-1].Seq+1 {
		a.preroll = a.preroll[:0]
	}
	a.preroll = append(a.preroll, f)
	if len(a.preroll) > a.cfg.PrerollFrames {
		a.preroll = a.preroll[1:]
	}
}
