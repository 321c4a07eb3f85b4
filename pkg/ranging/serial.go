package ranging

import (
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/internal/serialport"
)

// DefaultMaxAge bounds how old a serial sample may be before it is ignored.
const DefaultMaxAge = 500 * time.Millisecond

const historySize = 16

const readTimeout = 100 * time.Millisecond

type sample struct {
	meters float64
	at     time.Time
}

// Serial reads a UART ultrasonic range finder (A02YYUW / JSN-SR04T family)
// that streams 4 byte frames. A background goroutine decodes frames into a
// short history so Read and Median never block the caller.
type Serial struct {
	port   serialport.Port
	clk    clock.Clock
	logger *slog.Logger
	maxAge time.Duration

	mu      sync.Mutex
	history []sample

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// OpenSerial opens the range finder at path and starts reading.
func OpenSerial(path string, opts serialport.Options, logger *slog.Logger) (*Serial, error) {
	port, err := serialport.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSerial(port, clock.Real{}, logger), nil
}

// NewSerial starts reading frames from an already open port.
func NewSerial(port serialport.Port, clk clock.Clock, logger *slog.Logger) *Serial {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Serial{
		port:   port,
		clk:    clk,
		logger: logger.With("component", "ranging.serial"),
		maxAge: DefaultMaxAge,
		done:   make(chan struct{}),
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		s.logger.Warn("⚠️  read timeout not set, Close may block until a frame arrives", "error", err)
	}
	s.wg.Add(1)
	go s.readLoop()
	return s
}

func (s *Serial) readLoop() {
	defer s.wg.Done()

	var dec Decoder
	buf := make([]byte, 64)
	warned := false

	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, err := s.port.Read(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if !warned {
				s.logger.Warn("range finder read failed", "error", err)
				warned = true
			}
			s.clk.Sleep(100 * time.Millisecond)
			continue
		}
		for _, m := range dec.Feed(buf[:n]) {
			s.push(m)
		}
	}
}

func (s *Serial) push(m float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, sample{meters: m, at: s.clk.Now()})
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

// recent returns up to n fresh samples, newest last.
func (s *Serial) recent(n int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	var vals []float64
	for i := len(s.history) - 1; i >= 0 && len(vals) < n; i-- {
		if now.Sub(s.history[i].at) > s.maxAge {
			break
		}
		vals = append(vals, s.history[i].meters)
	}
	return vals
}

// Read returns the newest fresh sample.
func (s *Serial) Read() Reading {
	vals := s.recent(1)
	if len(vals) == 0 {
		return Unavailable
	}
	return At(vals[0])
}

// Median returns the median of the newest n fresh samples.
func (s *Serial) Median(n int) Reading {
	if n < 1 {
		n = 1
	}
	return medianOf(s.recent(n))
}

// Close stops the reader and closes the port.
func (s *Serial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.port.Close()
		s.wg.Wait()
	})
	return err
}

// Decoder reassembles 0xFF-headed range frames from a byte stream:
// 0xFF, distance high byte, distance low byte, checksum. The distance is in
// millimeters and the checksum is the low byte of the sum of the first three.
type Decoder struct {
	pending []byte
}

// Feed consumes p and returns the valid distances (meters) it completed.
// Frames with a bad checksum or out-of-range distance are dropped.
func (d *Decoder) Feed(p []byte) []float64 {
	d.pending = append(d.pending, p...)

	var out []float64
	i := 0
	for i+4 <= len(d.pending) {
		if d.pending[i] != 0xFF {
			i++
			continue
		}
		hi, lo, sum := d.pending[i+1], d.pending[i+2], d.pending[i+3]
		if byte(0xFF+int(hi)+int(lo)) != sum {
			i++
			continue
		}
		meters := float64(int(hi)<<8|int(lo)) / 1000.0
		if meters >= MinValid && meters <= MaxValid {
			out = append(out, meters)
		}
		i += 4
	}
	d.pending = append(d.pending[:0], d.pending[i:]...)
	return out
}
