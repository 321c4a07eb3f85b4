package audioio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps chunk in a 44-byte RIFF/WAVE header.
func EncodeWAV(chunk AudioChunk) []byte {
	data := chunk.Bytes()
	channels := chunk.Channels
	if channels == 0 {
		channels = 1
	}
	byteRate := chunk.SampleRate * channels * 2

	var buf bytes.Buffer
	buf.Grow(44 + len(data))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(chunk.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}
