package vision

import (
	"errors"
	"sync"
)

// MockSource is a FrameSource producing blank frames of a fixed size.
type MockSource struct {
	mu      sync.Mutex
	size    Size
	failAt  int
	reads   int
	closed  bool
	readErr error
}

// NewMockSource creates a source of w x h frames.
func NewMockSource(w, h int) *MockSource {
	return &MockSource{size: Size{W: w, H: h}}
}

// FailAfter makes the source return err once n frames have been read.
func (m *MockSource) FailAfter(n int, err error) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt = n
	m.readErr = err
	return m
}

// Read returns the next frame.
func (m *MockSource) Read() (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrSourceClosed
	}
	if m.readErr != nil && m.reads >= m.failAt {
		return nil, m.readErr
	}
	m.reads++
	return m.size, nil
}

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Reads returns the number of successful reads.
func (m *MockSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockDetector returns a fixed detection set and counts calls.
type MockDetector struct {
	mu     sync.Mutex
	dets   []Detection
	calls  int
	panics bool
	closed bool
}

// NewMockDetector creates a detector that always returns dets.
func NewMockDetector(dets ...Detection) *MockDetector {
	return &MockDetector{dets: dets}
}

// SetDetections replaces the returned detections.
func (m *MockDetector) SetDetections(dets ...Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dets = dets
}

// Panic makes every following Detect call panic.
func (m *MockDetector) Panic() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics = true
}

// Detect returns the configured detections.
func (m *MockDetector) Detect(_ Frame, _ float64, _ int) []Detection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.panics {
		panic(errors.New("mock detector failure"))
	}
	out := make([]Detection, len(m.dets))
	copy(out, m.dets)
	return out
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
