// Package audioio provides audio capture and playback for the device.
//
// This package supports two backends:
//   - Exec - pipes raw PCM through the ALSA command line tools
//     (aplay/arecord) on the device, or sox's play/rec on a laptop
//   - Mock - CI/Testing without hardware
//
// The backend is selected via configuration; "auto" picks exec when the
// tools are installed and falls back to mock otherwise.
package audioio

import (
	"fmt"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendExec uses external command line tools for audio I/O.
	BackendExec Backend = "exec"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the capture sample rate in Hz. Playback uses the rate
	// of each chunk.
	// Default: 16000 (what speech recognizers expect)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of capture channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// Device is the ALSA device, e.g. "default" or "plughw:1,0".
	// Empty uses the system default.
	Device string `yaml:"device" json:"device"`

	// PlayCommand and RecordCommand name the tools used by the exec backend.
	// Default: "aplay" and "arecord"
	PlayCommand   string `yaml:"play_command" json:"play_command"`
	RecordCommand string `yaml:"record_command" json:"record_command"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendAuto,
		SampleRate:    16000,
		Channels:      1,
		PlayCommand:   "aplay",
		RecordCommand: "arecord",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	switch c.Backend {
	case BackendAuto, BackendExec, BackendMock:
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	return nil
}
