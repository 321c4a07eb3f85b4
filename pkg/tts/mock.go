package tts

import (
	"context"
	"sync"
	"time"
)

// MockSampleRate is the sample rate of Mock output.
const MockSampleRate = 16000

// Mock implements Provider for testing.
// All methods can be customized via function fields.
type Mock struct {
	// SynthesizeFunc is called when Synthesize is invoked.
	// If nil, returns silent audio of appropriate length.
	SynthesizeFunc func(ctx context.Context, req Request) (*AudioResult, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	// VoiceList is returned by Voices.
	VoiceList []string

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Voice  string
	Time   time.Time
}

// NewMock creates a new mock provider with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		VoiceList: []string{"mock-a", "mock-b"},
		SynthesizeFunc: func(ctx context.Context, req Request) (*AudioResult, error) {
			// ~20ms of silence per character
			bytesPerChar := MockSampleRate * 2 / 50
			silence := make([]byte, len(req.Text)*bytesPerChar)
			format := PCM16Mono(MockSampleRate)

			return &AudioResult{
				Audio:     silence,
				Format:    format,
				CharCount: len(req.Text),
				LatencyMs: 1,
				Duration:  DurationOf(len(silence), format),
			}, nil
		},
	}
}

// Synthesize calls SynthesizeFunc and records the call.
func (m *Mock) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	m.recordCall("Synthesize", req)
	if req.Text == "" {
		return nil, WrapError("mock", ErrEmptyText)
	}
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Voices returns VoiceList.
func (m *Mock) Voices() []string {
	return m.VoiceList
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", Request{})
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.recordCall("Close", Request{})
	return nil
}

func (m *Mock) recordCall(method string, req Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Text:   req.Text,
		Voice:  req.Voice,
		Time:   time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Spoken returns the texts passed to Synthesize in order.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.Method == "Synthesize" {
			out = append(out, c.Text)
		}
	}
	return out
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		VoiceList: []string{"mock-a"},
		SynthesizeFunc: func(ctx context.Context, req Request) (*AudioResult, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// WithLatency wraps a mock to add artificial latency.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	originalSynthesize := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, req Request) (*AudioResult, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if originalSynthesize != nil {
			return originalSynthesize(ctx, req)
		}
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
