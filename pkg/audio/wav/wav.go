// Package wav encodes mono 16-bit PCM into RIFF/WAVE containers so
// synthesized clips can be shipped to the client as a single playable blob.
package wav

import (
	"bytes"
	"encoding/binary"
)

const headerSize = 44

// Encode wraps the given samples in a minimal PCM WAV container.
func Encode(pcm []int16, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(pcm)*2)

	dataSize := uint32(len(pcm) * 2)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, dataSize+36)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	for _, s := range pcm {
		binary.Write(&buf, binary.LittleEndian, s)
	}

	return buf.Bytes()
}
