// Package tts provides a unified interface for text-to-speech providers.
//
// Providers return 16-bit little-endian mono PCM so callers can apply gain
// and play the audio without knowing which engine produced it. Supported
// backends are Microsoft Edge neural voices (no API key), OpenAI TTS and a
// Mock for tests. Providers can be combined with NewChain so a cloud outage
// falls back to the next engine.
//
// Example usage:
//
//	provider, _ := tts.NewEdge(tts.WithVoice("en-US-AriaNeural"))
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, tts.Request{Text: "Path clear"})
//	// result.Audio contains PCM16 mono at result.Format.SampleRate
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to PCM16 mono audio.
	Synthesize(ctx context.Context, req Request) (*AudioResult, error)

	// Voices lists the voice names this provider accepts in Request.Voice.
	Voices() []string

	// Health checks provider connectivity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request is a single synthesis request.
type Request struct {
	// Text to speak.
	Text string

	// Voice overrides the provider's configured voice when set.
	Voice string
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains PCM16 little-endian mono samples.
	Audio []byte

	// Format describes the sample rate of Audio.
	Format AudioFormat

	// Duration is the playback duration at Format.SampleRate.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the total synthesis time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	SampleRate int // Hz
	Channels   int // always 1 for provider output
	BitDepth   int // always 16 for provider output
}

// PCM16Mono returns the format of provider output at rate.
func PCM16Mono(rate int) AudioFormat {
	return AudioFormat{SampleRate: rate, Channels: 1, BitDepth: 16}
}

// DurationOf returns the playback duration of n bytes in format f.
func DurationOf(n int, f AudioFormat) time.Duration {
	bytesPerSec := f.SampleRate * f.Channels * f.BitDepth / 8
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bytesPerSec)
}
