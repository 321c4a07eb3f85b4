package narration

import (
	"context"
	"sync"
	"time"
)

// Mock implements Generator for testing.
type Mock struct {
	// GenerateFunc is called when Generate is invoked. If nil, Generate
	// returns Reply after Delay.
	GenerateFunc func(ctx context.Context, c Context) (string, error)

	// Reply is the phrase returned by default.
	Reply string

	// Delay is how long the default implementation takes. It honors ctx.
	Delay time.Duration

	mu    sync.Mutex
	calls []Context
}

// NewMock creates a mock that answers reply immediately.
func NewMock(reply string) *Mock {
	return &Mock{Reply: reply}
}

// Generate records the call and answers.
func (m *Mock) Generate(ctx context.Context, c Context) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, c)
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.Reply == "" {
		return "", ErrEmptyPhrase
	}
	return m.Reply, nil
}

// Calls returns a copy of the contexts Generate was called with.
func (m *Mock) Calls() []Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Context, len(m.calls))
	copy(out, m.calls)
	return out
}
