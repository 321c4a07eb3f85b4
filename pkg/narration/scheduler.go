package narration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/pkg/fusion"
	"github.com/teslashibe/go-pathfinder/pkg/ranging"
	"github.com/teslashibe/go-pathfinder/pkg/speech"
	"github.com/teslashibe/go-pathfinder/pkg/vision"
)

// Config holds the scheduler timings.
type Config struct {
	// ObjectInterval is how long the same (label, sector) stays quiet.
	ObjectInterval time.Duration
	// GenericInterval is the minimum gap between occupancy summaries.
	GenericInterval time.Duration
	// ObjectWindow and GenericWindow are the speech dedupe windows.
	ObjectWindow  time.Duration
	GenericWindow time.Duration
	// SyncBudget bounds a blocking generator call.
	SyncBudget time.Duration
	// AsyncBudget bounds a background generator call.
	AsyncBudget time.Duration
	// Async speaks the template at once and replaces it when the generator answers.
	Async bool
}

// DefaultConfig returns the standard narration timings.
func DefaultConfig() Config {
	return Config{
		ObjectInterval:  1500 * time.Millisecond,
		GenericInterval: 1200 * time.Millisecond,
		ObjectWindow:    800 * time.Millisecond,
		GenericWindow:   time.Second,
		SyncBudget:      250 * time.Millisecond,
		AsyncBudget:     2500 * time.Millisecond,
	}
}

// Track identifies which narration track produced a phrase.
type Track int

const (
	TrackNone Track = iota
	TrackObject
	TrackGeneric
)

func (t Track) String() string {
	switch t {
	case TrackObject:
		return "object"
	case TrackGeneric:
		return "generic"
	default:
		return "none"
	}
}

// Decision reports what a Step did.
type Decision struct {
	Track     Track
	Text      string
	Generated bool // Text came from the generator
	Delivered bool // Text was handed to the speaker
}

type objectKey struct {
	label  string
	sector fusion.Sector
}

// task is the single in-flight background generation.
type task struct {
	cancel context.CancelFunc
	result chan string
	window time.Duration
}

// Scheduler decides when and what to narrate. Step must be called from one
// goroutine; the other methods are safe for concurrent use.
type Scheduler struct {
	cfg     Config
	gen     Generator
	speaker speech.Speaker
	clk     clock.Clock
	logger  *slog.Logger

	mu              sync.Mutex
	lastObjectKey   objectKey
	hasObjectKey    bool
	lastObjectTime  time.Time
	lastGenericTime time.Time
	lastPhrase      string
	muted           bool
	pending         *task
}

// NewScheduler creates a Scheduler. gen may be nil for template-only narration.
func NewScheduler(cfg Config, gen Generator, speaker speech.Speaker, clk clock.Clock, logger *slog.Logger) *Scheduler {
	if gen == nil {
		gen = Disabled{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:     cfg,
		gen:     gen,
		speaker: speaker,
		clk:     clk,
		logger:  logger.With("component", "narration.scheduler"),
	}
}

// Step makes the narration decision for one cycle. top is the most confident
// detection of the cycle, if any.
func (s *Scheduler) Step(top *vision.Detection, frameWidth int, fused fusion.Occupancy, d ranging.Reading) Decision {
	now := s.clk.Now()

	s.mu.Lock()
	if top != nil {
		sector := fusion.SectorOf(frameWidth, top.Box)
		key := objectKey{label: top.Label, sector: sector}
		if s.hasObjectKey && key == s.lastObjectKey && now.Sub(s.lastObjectTime) <= s.cfg.ObjectInterval {
			s.mu.Unlock()
			return Decision{}
		}
		s.lastObjectKey, s.hasObjectKey = key, true
		s.lastObjectTime = now
		s.lastGenericTime = now
		s.mu.Unlock()

		nc := Context{Label: top.Label, Sector: sector.String(), Distance: d, Obstacle: true}
		return s.emit(TrackObject, nc, ObjectPhrase(top.Label, sector, d), s.cfg.ObjectWindow)
	}

	if !s.lastGenericTime.IsZero() && now.Sub(s.lastGenericTime) <= s.cfg.GenericInterval {
		s.mu.Unlock()
		return Decision{}
	}
	s.lastGenericTime = now
	s.mu.Unlock()

	nc := Context{Sector: fusion.Center.String(), Distance: d, Obstacle: fused.Any()}
	return s.emit(TrackGeneric, nc, GenericPhrase(fused, d), s.cfg.GenericWindow)
}

// emit builds the phrase for an emission and delivers it.
func (s *Scheduler) emit(track Track, nc Context, fallback string, window time.Duration) Decision {
	s.cancelPending()

	dec := Decision{Track: track, Text: fallback}
	if s.Muted() {
		s.setLastPhrase(fallback)
		return dec
	}

	if s.cfg.Async {
		s.startTask(nc, window)
	} else if text, ok := s.generate(nc, s.cfg.SyncBudget); ok {
		dec.Text, dec.Generated = text, true
	}

	dec.Delivered = s.deliver(dec.Text, window)
	return dec
}

// generate runs the generator within budget, recovering from panics.
func (s *Scheduler) generate(nc Context, budget time.Duration) (text string, ok bool) {
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	return s.generateCtx(ctx, nc)
}

func (s *Scheduler) generateCtx(ctx context.Context, nc Context) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("generator panic recovered", "panic", r)
			text, ok = "", false
		}
	}()

	text, err := s.gen.Generate(ctx, nc)
	if err != nil {
		switch {
		case errors.Is(err, ErrGeneratorDisabled):
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			s.logger.Debug("generator timed out, using template")
		default:
			s.logger.Debug("generator failed, using template", "error", err)
		}
		return "", false
	}
	text = Clean(text)
	return text, text != ""
}

// startTask launches the background generation for an emission.
func (s *Scheduler) startTask(nc Context, window time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AsyncBudget)
	t := &task{cancel: cancel, result: make(chan string, 1), window: window}

	s.mu.Lock()
	s.pending = t
	s.mu.Unlock()

	go func() {
		defer cancel()
		text, ok := s.generateCtx(ctx, nc)
		if ok && ctx.Err() == nil {
			t.result <- text
		}
		close(t.result)
	}()
}

func (s *Scheduler) cancelPending() {
	s.mu.Lock()
	t := s.pending
	s.pending = nil
	s.mu.Unlock()
	if t != nil {
		t.cancel()
	}
}

// Poll delivers a finished background phrase, if one is ready. It never blocks.
func (s *Scheduler) Poll() (string, bool) {
	s.mu.Lock()
	t := s.pending
	s.mu.Unlock()
	if t == nil {
		return "", false
	}

	select {
	case text, ok := <-t.result:
		s.mu.Lock()
		if s.pending == t {
			s.pending = nil
		}
		s.mu.Unlock()
		if !ok {
			return "", false
		}
		if s.Muted() {
			return "", false
		}
		s.deliver(text, t.window)
		return text, true
	default:
		return "", false
	}
}

// Pending reports whether a background generation is in flight.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Scheduler) deliver(text string, window time.Duration) bool {
	s.setLastPhrase(text)
	if s.speaker == nil {
		return false
	}
	if err := s.speaker.SpeakAsync(text, window); err != nil {
		s.logger.Debug("phrase not queued", "text", text, "reason", err)
		return false
	}
	return true
}

func (s *Scheduler) setLastPhrase(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPhrase = text
}

// LastPhrase returns the most recent narration phrase.
func (s *Scheduler) LastPhrase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPhrase
}

// Repeat speaks the last phrase again, bypassing dedupe.
func (s *Scheduler) Repeat() bool {
	text := s.LastPhrase()
	if text == "" || s.speaker == nil {
		return false
	}
	return s.speaker.SpeakAsync(text, 0) == nil
}

// SetMuted mutes or unmutes narration. Timers keep advancing while muted.
func (s *Scheduler) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

// ToggleMute flips the mute state and returns the new state.
func (s *Scheduler) ToggleMute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = !s.muted
	return s.muted
}

// Muted reports whether narration is muted.
func (s *Scheduler) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Close cancels any in-flight generation.
func (s *Scheduler) Close() {
	s.cancelPending()
}
