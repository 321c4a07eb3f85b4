package tts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 decodes MP3 data to PCM16 mono.
func DecodeMP3(data []byte) ([]byte, AudioFormat, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, AudioFormat{}, fmt.Errorf("decode mp3: %w", err)
	}

	stereo, err := io.ReadAll(dec)
	if err != nil {
		return nil, AudioFormat{}, fmt.Errorf("decode mp3: %w", err)
	}

	return DownmixStereo(stereo), PCM16Mono(dec.SampleRate()), nil
}

// DownmixStereo averages interleaved PCM16 LE stereo frames into mono.
func DownmixStereo(stereo []byte) []byte {
	frames := len(stereo) / 4
	mono := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(stereo[i*4:]))
		r := int16(binary.LittleEndian.Uint16(stereo[i*4+2:]))
		m := int16((int32(l) + int32(r)) / 2)
		binary.LittleEndian.PutUint16(mono[i*2:], uint16(m))
	}
	return mono
}
