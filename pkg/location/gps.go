package location

import (
	"bytes"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/internal/serialport"
)

// DefaultMaxFixAge bounds how old a fix may be and still be reported.
const DefaultMaxFixAge = 2 * time.Minute

// maxLine caps a buffered NMEA line; real sentences are at most 82 bytes.
const maxLine = 256

// GPS reads NMEA sentences from a serial receiver in the background and
// keeps the latest valid fix.
type GPS struct {
	port   serialport.Port
	clk    clock.Clock
	logger *slog.Logger
	maxAge time.Duration

	mu   sync.Mutex
	fix  Fix
	have bool

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// OpenGPS opens the receiver at path.
func OpenGPS(path string, baud int, logger *slog.Logger) (*GPS, error) {
	port, err := serialport.Open(path, serialport.Options{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return NewGPS(port, clock.Real{}, logger), nil
}

// NewGPS starts reading sentences from an open port.
func NewGPS(port serialport.Port, clk clock.Clock, logger *slog.Logger) *GPS {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &GPS{
		port:   port,
		clk:    clk,
		logger: logger.With("component", "location.gps"),
		maxAge: DefaultMaxFixAge,
		done:   make(chan struct{}),
	}
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		g.logger.Warn("⚠️  read timeout not set", "error", err)
	}
	g.wg.Add(1)
	go g.readLoop()
	return g
}

func (g *GPS) readLoop() {
	defer g.wg.Done()

	buf := make([]byte, 128)
	var line []byte
	warned := false

	for {
		select {
		case <-g.done:
			return
		default:
		}

		n, err := g.port.Read(buf)
		if err != nil {
			select {
			case <-g.done:
				return
			default:
			}
			if !warned {
				g.logger.Warn("gps read failed", "error", err)
				warned = true
			}
			g.clk.Sleep(time.Second)
			continue
		}

		line = append(line, buf[:n]...)
		for {
			i := bytes.IndexByte(line, '\n')
			if i < 0 {
				break
			}
			g.handle(string(line[:i]))
			line = line[i+1:]
		}
		if len(line) > maxLine {
			line = line[:0]
		}
	}
}

func (g *GPS) handle(sentence string) {
	lat, lon, err := ParseSentence(sentence)
	if err != nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.have {
		g.logger.Info("gps fix acquired", "lat", lat, "lon", lon)
	}
	g.fix = Fix{Lat: lat, Lon: lon, Time: g.clk.Now()}
	g.have = true
}

// ReadLocation returns the latest fix if it is recent enough.
func (g *GPS) ReadLocation() (Fix, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.have || g.clk.Since(g.fix.Time) > g.maxAge {
		return Fix{}, false
	}
	return g.fix, true
}

// Close stops the reader and closes the port.
func (g *GPS) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.done)
		err = g.port.Close()
		g.wg.Wait()
	})
	return err
}
