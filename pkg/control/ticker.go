package control

import (
	"time"

	"github.com/teslashibe/go-pathfinder/internal/clock"
)

// Ticker paces a loop at a fixed period against absolute deadlines, so the
// time a cycle takes does not accumulate as drift.
type Ticker struct {
	period   time.Duration
	clk      clock.Clock
	deadline time.Time
	resyncs  int
}

// NewTicker starts a ticker whose first deadline is one period from now.
func NewTicker(period time.Duration, clk clock.Clock) *Ticker {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Ticker{period: period, clk: clk, deadline: clk.Now()}
}

// Next advances the deadline by one period and returns how long to sleep
// until it. When the caller is already more than a period late the deadline
// is moved to now and Next returns 0, skipping the missed ticks instead of
// running them back to back.
func (t *Ticker) Next() time.Duration {
	t.deadline = t.deadline.Add(t.period)
	residual := t.deadline.Sub(t.clk.Now())
	if residual < -t.period {
		t.deadline = t.clk.Now()
		t.resyncs++
		return 0
	}
	if residual < 0 {
		return 0
	}
	return residual
}

// Wait sleeps until the next deadline.
func (t *Ticker) Wait() {
	if d := t.Next(); d > 0 {
		t.clk.Sleep(d)
	}
}

// Resyncs returns how many times the ticker dropped missed ticks.
func (t *Ticker) Resyncs() int {
	return t.resyncs
}
