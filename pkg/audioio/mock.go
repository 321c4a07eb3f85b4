package audioio

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// ErrClosed is returned by players and recorders after Close.
var ErrClosed = errors.New("audioio: closed")

// MockPlayer records played chunks instead of producing sound.
type MockPlayer struct {
	mu      sync.Mutex
	played  []AudioChunk
	closed  bool
	err     error
	realtime bool
}

// NewMockPlayer creates a mock player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

// WithRealtime makes Play block for the chunk's duration, like real playback.
func (m *MockPlayer) WithRealtime() *MockPlayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.realtime = true
	return m
}

// FailWith makes every following Play return err.
func (m *MockPlayer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Play records chunk.
func (m *MockPlayer) Play(ctx context.Context, chunk AudioChunk) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}
	m.played = append(m.played, chunk)
	realtime := m.realtime
	m.mu.Unlock()

	if realtime {
		select {
		case <-time.After(chunk.Duration()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Played returns a copy of the chunks played so far.
func (m *MockPlayer) Played() []AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AudioChunk, len(m.played))
	copy(out, m.played)
	return out
}

// Name returns "mock".
func (m *MockPlayer) Name() string { return string(BackendMock) }

// Close marks the player closed.
func (m *MockPlayer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockRecorder returns synthetic audio (silence or a sine wave).
type MockRecorder struct {
	cfg Config

	mu        sync.Mutex
	closed    bool
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
	records   int
}

// MockRecorderOption configures a MockRecorder.
type MockRecorderOption func(*MockRecorder)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockRecorderOption {
	return func(m *MockRecorder) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// NewMockRecorder creates a new mock recorder.
func NewMockRecorder(cfg Config, opts ...MockRecorderOption) *MockRecorder {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	m := &MockRecorder{cfg: cfg, amplitude: 0.5}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record returns d worth of synthetic audio without blocking.
func (m *MockRecorder) Record(_ context.Context, d time.Duration) (AudioChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return AudioChunk{}, ErrClosed
	}
	m.records++

	n := int(d.Seconds() * float64(m.cfg.SampleRate))
	samples := make([]int16, n*m.cfg.Channels)
	if m.frequency > 0 {
		step := 2 * math.Pi * m.frequency / float64(m.cfg.SampleRate)
		for i := 0; i < n; i++ {
			v := int16(m.amplitude * 32767 * math.Sin(m.phase))
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = v
			}
			m.phase += step
		}
		m.phase = math.Mod(m.phase, 2*math.Pi)
	}

	return AudioChunk{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}, nil
}

// Records returns how many captures were taken.
func (m *MockRecorder) Records() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records
}

// Name returns "mock".
func (m *MockRecorder) Name() string { return string(BackendMock) }

// Close marks the recorder closed.
func (m *MockRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
