// Package audio provides the PCM frame type shared by the ingest pipeline.
package audio

import (
	"fmt"
	"math"
	"time"
)

// Frame represents one fixed-duration chunk of mono 16-bit PCM captured from
// the client. Frames are ephemeral: the ingest gate inspects them and the
// assembler either buffers or drops them.
//
// Seq is assigned by the capture side and must be strictly increasing within
// a session; the assembler treats a gap as a corrupted utterance.
type Frame struct {
	Seq        uint64
	PCM        []int16
	SampleRate int
	Timestamp  time.Time
}

// NewFrame validates and builds a Frame. SampleRate must be positive and the
// frame must carry at least one sample.
func NewFrame(seq uint64, pcm []int16, sampleRate int, ts time.Time) (Frame, error) {
	if sampleRate <= 0 {
		return Frame{}, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	if len(pcm) == 0 {
		return Frame{}, fmt.Errorf("audio: empty frame")
	}
	return Frame{Seq: seq, PCM: pcm, SampleRate: sampleRate, Timestamp: ts}, nil
}

// Duration returns the wall-clock duration covered by this frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(f.PCM)) * time.Second / time.Duration(f.SampleRate)
}

// Clone deep-copies the frame so the caller may reuse the sample buffer.
func (f Frame) Clone() Frame {
	pcm := make([]int16, len(f.PCM))
	copy(pcm, f.PCM)
	f.PCM = pcm
	return f
}

// RMS computes the root-mean-square amplitude of the samples, normalized to
// [0, 1] against full-scale int16.
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(pcm))) / math.MaxInt16
}

// DecodePCM16 converts little-endian 16-bit PCM bytes to samples. Odd
// trailing bytes are ignored.
func DecodePCM16(data []byte) []int16 {
	pcm := make([]int16, len(data)/2)
	for i := range pcm {
		pcm[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return pcm
}

// EncodePCM16 converts samples to little-endian 16-bit PCM bytes.
func EncodePCM16(pcm []int16) []byte {
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}
