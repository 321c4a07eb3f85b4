package haptics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/clock"
)

// DefaultKeepalive is how often an unchanged pattern is resent so a band
// that dropped a packet or rebooted catches up.
const DefaultKeepalive = time.Second

// Driver sends patterns through a Transport, skipping identical consecutive
// patterns between keepalives. Transport errors never reach the caller.
type Driver struct {
	transport Transport
	clk       clock.Clock
	logger    *slog.Logger
	keepalive time.Duration

	mu       sync.Mutex
	last     Pattern
	lastSent time.Time
	sent     bool
	failing  bool
}

// NewDriver wraps t.
func NewDriver(t Transport, clk clock.Clock, logger *slog.Logger) *Driver {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		transport: t,
		clk:       clk,
		logger:    logger.With("component", "haptics.driver"),
		keepalive: DefaultKeepalive,
	}
}

// Update sends p unless it equals the last pattern sent less than a
// keepalive ago. It reports whether a send was attempted.
func (d *Driver) Update(ctx context.Context, p Pattern) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clk.Now()
	if d.sent && p == d.last && now.Sub(d.lastSent) < d.keepalive {
		return false
	}

	err := d.transport.Send(ctx, p)
	d.last = p
	d.lastSent = now
	d.sent = true

	if err != nil {
		if !d.failing {
			d.logger.Warn("haptic send failed", "error", err)
			d.failing = true
		} else {
			d.logger.Debug("haptic send failed", "error", err)
		}
		return true
	}
	if d.failing {
		d.logger.Info("haptic transport recovered")
		d.failing = false
	}
	return true
}

// Last returns the last pattern attempted.
func (d *Driver) Last() Pattern {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Close closes the transport.
func (d *Driver) Close() error {
	return d.transport.Close()
}
