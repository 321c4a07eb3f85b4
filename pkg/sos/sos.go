// Package sos detects the emergency gesture and escalates alerts across an
// ordered list of delivery channels.
package sos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/pkg/location"
	"github.com/teslashibe/go-pathfinder/pkg/speech"
)

// Spoken announcements.
const (
	AnnounceSending = "Sending emergency alert"
	AnnounceSent    = "SOS sent successfully"
	AnnounceFailed  = "SOS failed. Please call for help"
)

// DefaultMessage is used when Trigger is called without a message.
const DefaultMessage = "SOS triggered"

// announceWindow is the speech dedupe window for announcements.
const announceWindow = time.Second

var (
	// ErrNoChannels is reported in a Result when no channel is configured.
	ErrNoChannels = errors.New("sos: no delivery channels configured")

	// ErrAllChannelsFailed is reported in a Result when every pass failed.
	ErrAllChannelsFailed = errors.New("sos: all channels failed")

	// ErrInProgress is reported in a Result when another alert is still
	// being sent.
	ErrInProgress = errors.New("sos: alert already in progress")
)

// Config controls gesture detection and retries.
type Config struct {
	Enabled     bool
	PressWindow time.Duration // presses older than this are forgotten
	PressCount  int           // presses inside the window that trigger an alert
	Retries     int           // full passes over the channel list
	Backoff     time.Duration // pause between passes
	Timeout     time.Duration // bound on one whole Trigger
}

// DefaultConfig returns the standard gesture and retry settings.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		PressWindow: 1500 * time.Millisecond,
		PressCount:  3,
		Retries:     3,
		Backoff:     500 * time.Millisecond,
		Timeout:     2 * time.Minute,
	}
}

// AlertEvent is one emergency alert. It is never persisted.
type AlertEvent struct {
	ID       string
	Message  string
	Location *location.Fix
	Created  time.Time
}

// Result is the outcome of a Trigger.
type Result struct {
	Event    AlertEvent
	Body     string
	Sent     bool
	Channel  string // channel that delivered the alert
	Attempts int    // passes made over the channel list
	Skipped  bool   // dispatcher disabled
	Err      error  // ErrNoChannels, ErrAllChannelsFailed or ErrInProgress when not sent
}

// Dispatcher owns the press history and sends alerts.
type Dispatcher struct {
	cfg      Config
	channels []Channel
	locator  location.Provider
	speaker  speech.Speaker
	clk      clock.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	presses  []time.Time
	busy     bool
	last     *Result
	inflight sync.WaitGroup

	// OnResult, if set, is called after every completed Trigger.
	OnResult func(Result)
}

// NewDispatcher creates a Dispatcher. channels are tried in order.
func NewDispatcher(cfg Config, channels []Channel, locator location.Provider, speaker speech.Speaker, clk clock.Clock, logger *slog.Logger) *Dispatcher {
	if locator == nil {
		locator = location.Unavailable{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.PressCount < 1 {
		cfg.PressCount = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Dispatcher{
		cfg:      cfg,
		channels: channels,
		locator:  locator,
		speaker:  speaker,
		clk:      clk,
		logger:   logger.With("component", "sos.dispatcher"),
	}
}

// Enabled reports whether the dispatcher acts on presses and triggers.
func (d *Dispatcher) Enabled() bool {
	return d.cfg.Enabled
}

// Press records one button press. When PressCount presses fall inside
// PressWindow the history is cleared and an alert is sent in the background.
// It reports whether this press triggered an alert.
func (d *Dispatcher) Press() bool {
	if !d.cfg.Enabled {
		return false
	}

	now := d.clk.Now()
	d.mu.Lock()
	kept := d.presses[:0]
	for _, t := range d.presses {
		if now.Sub(t) <= d.cfg.PressWindow {
			kept = append(kept, t)
		}
	}
	d.presses = append(kept, now)
	count := len(d.presses)
	fire := count >= d.cfg.PressCount
	if fire {
		d.presses = d.presses[:0]
	}
	d.mu.Unlock()

	d.logger.Debug("sos press", "count", count)
	if !fire {
		return false
	}
	return d.TriggerAsync("")
}

// PressCount returns the number of presses currently remembered.
func (d *Dispatcher) PressCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.presses)
}

// TriggerAsync runs Trigger on a background goroutine. Only one alert may be
// in flight; it returns false if the trigger was dropped.
func (d *Dispatcher) TriggerAsync(message string) bool {
	if !d.cfg.Enabled {
		return false
	}
	if !d.acquire(message) {
		return false
	}
	go func() {
		defer d.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		defer cancel()
		d.run(ctx, message)
	}()
	return true
}

// Trigger sends an alert now, bypassing the press gesture. It never panics
// and failures are reported in the Result, not returned. While another
// alert is in flight it sends nothing and reports ErrInProgress.
func (d *Dispatcher) Trigger(ctx context.Context, message string) Result {
	if !d.cfg.Enabled {
		return Result{Skipped: true}
	}
	if !d.acquire(message) {
		return Result{Err: ErrInProgress}
	}
	defer d.inflight.Done()
	return d.run(ctx, message)
}

// acquire claims the single in-flight slot.
func (d *Dispatcher) acquire(message string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		d.logger.Warn("sos already in progress, trigger dropped", "message", message)
		return false
	}
	d.busy = true
	d.inflight.Add(1)
	return true
}

// Busy reports whether an alert is being sent.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

// Last returns the most recent result, if any.
func (d *Dispatcher) Last() (Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return Result{}, false
	}
	return *d.last, true
}

// Wait blocks until in-flight alerts have finished.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) run(ctx context.Context, message string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("sos panic recovered", "panic", r)
			res.Sent = false
			res.Err = fmt.Errorf("sos: panic: %v", r)
		}
		d.mu.Lock()
		d.busy = false
		d.last = &res
		d.mu.Unlock()
		if d.OnResult != nil {
			d.OnResult(res)
		}
	}()

	if message == "" {
		message = DefaultMessage
	}
	event := AlertEvent{ID: uuid.New().String(), Message: message, Created: d.clk.Now()}
	if fix, ok := d.locator.ReadLocation(); ok {
		event.Location = &fix
	}
	res = Result{Event: event, Body: BuildBody(event)}

	d.logger.Warn("🔴 SOS", "id", event.ID, "message", message, "location", LocationText(event.Location))
	d.announce(AnnounceSending)

	if len(d.channels) == 0 {
		res.Err = ErrNoChannels
	} else {
		d.deliver(ctx, &res)
	}

	if res.Sent {
		d.logger.Info("✅ SOS sent successfully", "id", event.ID, "channel", res.Channel, "attempts", res.Attempts)
		d.announce(AnnounceSent)
	} else {
		d.logger.Error("❌ SOS delivery failed; check credentials and network", "id", event.ID, "attempts", res.Attempts, "error", res.Err)
		d.announce(AnnounceFailed)
	}
	return res
}

// deliver makes up to Retries passes over the channels, stopping at the
// first success.
func (d *Dispatcher) deliver(ctx context.Context, res *Result) {
	for pass := 1; pass <= d.cfg.Retries; pass++ {
		res.Attempts = pass
		for _, ch := range d.channels {
			if ctx.Err() != nil {
				res.Err = ctx.Err()
				return
			}
			if d.send(ctx, ch, res.Body) {
				res.Sent = true
				res.Channel = ch.Name()
				return
			}
		}
		if pass < d.cfg.Retries {
			d.clk.Sleep(d.cfg.Backoff)
		}
	}
	res.Err = ErrAllChannelsFailed
}

// send calls one channel, converting a panic into a failed attempt.
func (d *Dispatcher) send(ctx context.Context, ch Channel, body string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("channel panic recovered", "channel", ch.Name(), "panic", r)
			ok = false
		}
	}()
	ok = ch.Send(ctx, body)
	if !ok {
		d.logger.Warn("channel failed", "channel", ch.Name())
	}
	return ok
}

func (d *Dispatcher) announce(text string) {
	if d.speaker == nil {
		return
	}
	if err := d.speaker.SpeakAsync(text, announceWindow); err != nil {
		d.logger.Debug("announcement not queued", "text", text, "reason", err)
	}
}

// BuildBody renders the alert text sent on every channel.
func BuildBody(e AlertEvent) string {
	msg := e.Message
	if msg == "" {
		msg = DefaultMessage
	}
	return fmt.Sprintf("🚨 SOS Alert! %s. Location: %s", msg, LocationText(e.Location))
}

// LocationText returns a maps link or "location unavailable".
func LocationText(fix *location.Fix) string {
	if fix == nil {
		return "location unavailable"
	}
	return location.MapsLink(*fix)
}
