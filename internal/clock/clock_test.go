package clock

import (
	"testing"
	"time"
)

func TestReal_Since(t *testing.T) {
	c := Real{}
	past := c.Now().Add(-time.Second)
	if d := c.Since(past); d < time.Second {
		t.Errorf("Since() = %v, expected >= 1s", d)
	}
}

func TestMock_AdvanceAndSleep(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMock(start)

	c.Advance(500 * time.Millisecond)
	if got := c.Since(start); got != 500*time.Millisecond {
		t.Errorf("Since after Advance = %v, want 500ms", got)
	}

	c.Sleep(250 * time.Millisecond)
	c.Sleep(0)
	if got := c.Since(start); got != 750*time.Millisecond {
		t.Errorf("Since after Sleep = %v, want 750ms", got)
	}

	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 250*time.Millisecond || sleeps[1] != 0 {
		t.Errorf("Sleeps() = %v", sleeps)
	}
}
