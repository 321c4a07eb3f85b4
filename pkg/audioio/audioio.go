package audioio

import (
	"context"
	"io"
	"time"
)

// AudioChunk represents a chunk of PCM16 audio.
type AudioChunk struct {
	// Samples contains PCM16 audio samples.
	Samples []int16

	// SampleRate is the sample rate of this chunk.
	SampleRate int

	// Channels is the number of channels in this chunk.
	Channels int
}

// Bytes returns the raw little-endian bytes of the audio chunk.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// FromBytes populates the chunk from raw PCM16 bytes.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = BytesToSamples(data)
}

// Duration returns the playback duration of this audio chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate*c.Channels)
}

// Player plays audio to the speaker or bone-conduction headset.
type Player interface {
	// Play blocks until the chunk has been played or ctx is done.
	Play(ctx context.Context, chunk AudioChunk) error

	// Name returns the backend name (e.g., "exec", "mock").
	Name() string

	io.Closer
}

// Recorder captures audio from the microphone.
type Recorder interface {
	// Record captures up to d of audio. It returns what was captured when
	// ctx ends early.
	Record(ctx context.Context, d time.Duration) (AudioChunk, error)

	// Name returns the backend name (e.g., "exec", "mock").
	Name() string

	io.Closer
}
