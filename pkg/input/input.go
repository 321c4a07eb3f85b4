// Package input routes discrete control events from the keyboard, the
// hardware button and the dashboard to the control loop.
//
// Sources publish on a shared event bus; the loop drains a bounded queue
// once per cycle so no source can block it.
package input

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
)

// Name identifies an event.
type Name string

// Event names.
const (
	Quit        Name = "quit"
	SOSPress    Name = "sos_press"
	SOSTrigger  Name = "sos_trigger"
	SpeechTest  Name = "speech_test"
	Mute        Name = "mute"
	NextVoice   Name = "next_voice"
	RateUp      Name = "rate_up"
	RateDown    Name = "rate_down"
	VolumeUp    Name = "volume_up"
	VolumeDown  Name = "volume_down"
	SimDistance Name = "sim_distance"
	SimClear    Name = "sim_clear"
	Repeat      Name = "repeat"
)

// Names lists every known event name.
var Names = []Name{
	Quit, SOSPress, SOSTrigger, SpeechTest, Mute, NextVoice,
	RateUp, RateDown, VolumeUp, VolumeDown, SimDistance, SimClear, Repeat,
}

// ManualHelpMessage is the SOS message for a manual trigger.
const ManualHelpMessage = "Manual help requested"

// DefaultQueueSize bounds the events buffered between two cycles.
const DefaultQueueSize = 32

// topic is the bus topic all sources publish on.
const topic = "pathfinder:input"

// ErrUnknownEvent is returned by Parse for an unrecognised name.
var ErrUnknownEvent = errors.New("input: unknown event")

// Event is one discrete control event.
type Event struct {
	Name    Name
	Message string  // SOS trigger message
	Value   float64 // simulated distance in meters
	Source  string  // "keyboard", "button", "dashboard", "voice"
}

func (e Event) String() string {
	switch e.Name {
	case SimDistance:
		return fmt.Sprintf("%s(%.1f)", e.Name, e.Value)
	case SOSTrigger:
		return fmt.Sprintf("%s(%q)", e.Name, e.Message)
	}
	return string(e.Name)
}

// Parse builds an event from its name and an optional value. sim_distance
// requires a positive value in meters. The event never aliases name or
// value, so callers may pass strings backed by reused buffers.
func Parse(name, value string) (Event, error) {
	n := Name(strings.Clone(strings.ToLower(strings.TrimSpace(name))))
	known := false
	for _, k := range Names {
		if n == k {
			known = true
			break
		}
	}
	if !known {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}

	e := Event{Name: n}
	switch n {
	case SimDistance:
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || v <= 0 {
			return Event{}, fmt.Errorf("input: sim_distance needs a positive value, got %q", value)
		}
		e.Value = v
	case SOSTrigger:
		e.Message = strings.Clone(strings.TrimSpace(value))
		if e.Message == "" {
			e.Message = ManualHelpMessage
		}
	}
	return e, nil
}

// Bus fans events in from every source.
type Bus struct {
	bus     evbus.Bus
	queue   chan Event
	logger  *slog.Logger
	dropped atomic.Int64

	mu     sync.Mutex
	closed bool
}

// NewBus creates a bus whose loop queue holds size events.
func NewBus(size int, logger *slog.Logger) *Bus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		bus:    evbus.New(),
		queue:  make(chan Event, size),
		logger: logger.With("component", "input.bus"),
	}
	// Subscribe only fails for a non-func handler.
	_ = b.bus.Subscribe(topic, b.enqueue)
	return b
}

// Publish sends an event to the loop queue and every observer. It never
// blocks: when the queue is full the event is dropped for the loop.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	b.bus.Publish(topic, e)
}

// Observe registers fn for every published event. fn runs on the
// publisher's goroutine and must not block.
func (b *Bus) Observe(fn func(Event)) error {
	return b.bus.Subscribe(topic, fn)
}

// Drain returns the queued events in arrival order without blocking.
func (b *Bus) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-b.queue:
			out = append(out, e)
		default:
			return out
		}
	}
}

// Dropped returns the number of events dropped on a full queue.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops accepting events.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	_ = b.bus.Unsubscribe(topic, b.enqueue)
}

func (b *Bus) enqueue(e Event) {
	select {
	case b.queue <- e:
		b.logger.Debug("input event", "event", e.String(), "source", e.Source)
	default:
		b.dropped.Add(1)
		b.logger.Warn("input queue full, event dropped", "event", e.String())
	}
}
