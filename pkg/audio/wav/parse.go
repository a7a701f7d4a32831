package wav

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Parse extracts mono 16-bit samples and the sample rate from a WAV
// blob. It walks the chunk list rather than assuming a fixed header, so
// files with LIST or fact chunks parse correctly. Stereo input is
// downmixed by averaging.
func Parse(data []byte) ([]int16, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("wav: not a RIFF/WAVE blob")
	}

	var (
		sampleRate  int
		numChannels int
		bitsPerSamp int
		haveFmt     bool
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("wav: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("wav: unsupported audio format %d, want PCM", format)
			}
			numChannels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSamp = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("wav: data chunk before fmt chunk")
			}
			if bitsPerSamp != 16 {
				return nil, 0, fmt.Errorf("wav: unsupported bit depth %d, want 16", bitsPerSamp)
			}
			if numChannels < 1 || numChannels > 2 {
				return nil, 0, fmt.Errorf("wav: unsupported channel count %d", numChannels)
			}
			return decodeSamples(data[body:body+size], numChannels), sampleRate, nil
		}
		// Chunks are word aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}
	return nil, 0, fmt.Errorf("wav: no data chunk found")
}

func decodeSamples(payload []byte, numChannels int) []int16 {
	frameBytes := 2 * numChannels
	n := len(payload) / frameBytes
	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		base := i * frameBytes
		if numChannels == 1 {
			pcm[i] = int16(binary.LittleEndian.Uint16(payload[base : base+2]))
			continue
		}
		left := int16(binary.LittleEndian.Uint16(payload[base : base+2]))
		right := int16(binary.LittleEndian.Uint16(payload[base+2 : base+4]))
		pcm[i] = int16((int32(left) + int32(right)) / 2)
	}
	return pcm
}

// ReadFile parses a WAV file from disk.
func ReadFile(path string) ([]int16, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("wav: %w", err)
	}
	return Parse(data)
}
