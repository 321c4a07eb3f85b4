// Package control runs the single-goroutine perception loop: capture,
// throttled detection, occupancy fusion, haptics, narration and the
// discrete input events, paced by a fixed-tick scheduler.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/pkg/debug"
	"github.com/teslashibe/go-pathfinder/pkg/fusion"
	"github.com/teslashibe/go-pathfinder/pkg/haptics"
	"github.com/teslashibe/go-pathfinder/pkg/input"
	"github.com/teslashibe/go-pathfinder/pkg/narration"
	"github.com/teslashibe/go-pathfinder/pkg/ranging"
	"github.com/teslashibe/go-pathfinder/pkg/sos"
	"github.com/teslashibe/go-pathfinder/pkg/speech"
	"github.com/teslashibe/go-pathfinder/pkg/vision"
)

var (
	// ErrAcquisition stops the loop when a frame cannot be read.
	ErrAcquisition = errors.New("control: frame acquisition failed")

	// ErrQuit is returned by Step when a quit event was handled.
	ErrQuit = errors.New("control: quit requested")
)

// Phrases spoken by the loop itself.
const (
	ReadyPhrase      = "Pathfinder ready"
	SpeechTestPhrase = "Test: text to speech is working"
	UnmutedPhrase    = "Voice unmuted"
	VoiceHelpMessage = "Voice help requested"
)

// speakWindow is the dedupe window for phrases spoken by the loop.
const speakWindow = time.Second

// Config holds the loop cadences and thresholds.
type Config struct {
	Period         time.Duration // cycle period, 1/15 s by default
	DetectEvery    int           // detect on every Nth cycle, reuse the cache otherwise
	Confidence     float64
	ImageSize      int
	ObstaclesOnly  bool
	DangerDistance float64
	MaxRange       float64 // distance at which haptics reach their floor
	RangeSamples   int     // readings per median
	HapticPeriod   time.Duration
	ListenEvery    int // cycles between voice listens, 0 disables
	ListenTimeout  time.Duration
}

// DefaultConfig returns the standard 15 Hz configuration.
func DefaultConfig() Config {
	return Config{
		Period:         time.Second / 15,
		DetectEvery:    3,
		Confidence:     0.35,
		ImageSize:      416,
		DangerDistance: 1.5,
		MaxRange:       haptics.DefaultMaxRange,
		RangeSamples:   5,
		HapticPeriod:   100 * time.Millisecond,
		ListenEvery:    30,
		ListenTimeout:  800 * time.Millisecond,
	}
}

// Voice is the speech output as seen by the loop.
type Voice interface {
	speech.Speaker
	AdjustRate(delta int) int
	Rate() int
	AdjustVolume(delta float64) float64
	Volume() float64
	NextVoice() (string, bool)
	Voice() string
	Stop()
}

// Overlay draws the debug view and returns the pressed key, -1 for none.
type Overlay interface {
	Draw(frame vision.Frame, dets []vision.Detection, st Status) int
	Close() error
}

// Simulator is implemented by range sensors that accept a fixed distance.
type Simulator interface {
	SetOverride(m float64)
	ClearOverride()
}

// Deps are the loop collaborators. Listener, SOS, Input, Overlay and Status
// are optional.
type Deps struct {
	Source   vision.FrameSource
	Detector vision.Detector
	Range    ranging.Sensor
	Haptics  *haptics.Driver
	Narrator *narration.Scheduler
	Speech   Voice
	Listener speech.Listener
	SOS      *sos.Dispatcher
	Input    *input.Bus
	Overlay  Overlay
	Status   StatusSink
	Clock    clock.Clock
	Logger   *slog.Logger
}

type listenResult struct {
	cmd speech.Command
	ok  bool
}

// Loop is the perception and feedback loop. It is not safe for concurrent
// use; Run owns it.
type Loop struct {
	cfg      Config
	source   vision.FrameSource
	detector vision.Detector
	rng      ranging.Sensor
	haptics  *haptics.Driver
	narrator *narration.Scheduler
	voice    Voice
	listener speech.Listener
	sos      *sos.Dispatcher
	bus      *input.Bus
	overlay  Overlay
	status   StatusSink
	clk      clock.Clock
	logger   *slog.Logger

	cycle      uint64
	dets       []vision.Detection
	fused      fusion.Occupancy
	pattern    haptics.Pattern
	lastHaptic time.Time
	hapticSent bool
	lastStart  time.Time
	fps        float64

	listening bool
	listenCh  chan listenResult
	cancel    context.CancelFunc
}

// New validates deps and builds a Loop.
func New(cfg Config, deps Deps) (*Loop, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("control: frame source is required")
	case deps.Detector == nil:
		return nil, errors.New("control: detector is required")
	case deps.Range == nil:
		return nil, errors.New("control: range sensor is required")
	case deps.Narrator == nil:
		return nil, errors.New("control: narrator is required")
	case deps.Speech == nil:
		return nil, errors.New("control: speech output is required")
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("control: period must be positive, got %v", cfg.Period)
	}
	if cfg.DetectEvery < 1 {
		cfg.DetectEvery = 1
	}
	if cfg.RangeSamples < 1 {
		cfg.RangeSamples = 1
	}
	if cfg.MaxRange <= 0 {
		cfg.MaxRange = haptics.DefaultMaxRange
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Loop{
		cfg:      cfg,
		source:   deps.Source,
		detector: deps.Detector,
		rng:      deps.Range,
		haptics:  deps.Haptics,
		narrator: deps.Narrator,
		voice:    deps.Speech,
		listener: deps.Listener,
		sos:      deps.SOS,
		bus:      deps.Input,
		overlay:  deps.Overlay,
		status:   deps.Status,
		clk:      deps.Clock,
		logger:   deps.Logger.With("component", "control.loop"),
		listenCh: make(chan listenResult, 1),
	}, nil
}

// Run executes cycles until ctx is cancelled, a quit event arrives or a
// frame cannot be read. Only the acquisition failure is returned as an
// error. Collaborators are closed before Run returns.
func (l *Loop) Run(ctx context.Context) (err error) {
	ctx, l.cancel = context.WithCancel(ctx)
	defer l.shutdown()

	l.logger.Info("🧭 control loop started",
		"period", l.cfg.Period, "detect_every", l.cfg.DetectEvery, "danger_m", l.cfg.DangerDistance)
	l.say(ReadyPhrase, speakWindow)

	ticker := NewTicker(l.cfg.Period, l.clk)
	for {
		if ctx.Err() != nil {
			l.logger.Info("control loop cancelled")
			return nil
		}
		switch err := l.Step(ctx); {
		case errors.Is(err, ErrQuit):
			l.logger.Info("quit requested")
			return nil
		case err != nil:
			l.logger.Error("❌ control loop stopped", "error", err)
			return err
		}
		ticker.Wait()
	}
}

// Step runs one cycle. It returns ErrQuit after a quit event and wraps
// ErrAcquisition when the frame source fails.
func (l *Loop) Step(ctx context.Context) error {
	now := l.clk.Now()
	l.trackFPS(now)

	// 1. Acquire
	frame, err := l.source.Read()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}

	// 2. Detect, throttled
	if l.cycle%uint64(l.cfg.DetectEvery) == 0 {
		l.dets = l.detect(frame)
	}

	// 3-4. Sectorize, range, fuse
	occ := fusion.Sectorize(frame.Width(), l.dets)
	d := l.distance()
	l.fused = fusion.Fuse(occ, d, l.cfg.DangerDistance)

	// 5. Narrate
	var top *vision.Detection
	if best, ok := vision.Top(l.dets); ok {
		top = &best
	}
	guard(l.logger, "narrator", func() {
		l.narrator.Step(top, frame.Width(), l.fused, d)
		l.narrator.Poll()
	})

	// 6. Haptics
	if l.haptics != nil && (!l.hapticSent || now.Sub(l.lastHaptic) >= l.cfg.HapticPeriod) {
		l.pattern = haptics.Map(l.fused, d, l.cfg.DangerDistance, l.cfg.MaxRange)
		guard(l.logger, "haptics", func() { l.haptics.Update(ctx, l.pattern) })
		l.lastHaptic = now
		l.hapticSent = true
	}

	// 7. Events
	st := l.snapshot(d, top)
	if l.overlay != nil {
		key := -1
		guard(l.logger, "overlay", func() { key = l.overlay.Draw(frame, l.dets, st) })
		if e, ok := input.KeyEvent(key); ok && l.bus != nil {
			l.bus.Publish(e)
		}
	}
	quit := l.handleEvents()
	l.pollListen(ctx)

	// 8. Publish
	if l.status != nil {
		guard(l.logger, "status", func() { l.status.Publish(st) })
	}

	debug.CycleLog("🔁 cycle=%d dets=%d occ=%v d=%s haptic=%v\n",
		l.cycle, len(l.dets), l.fused, d, l.pattern)

	l.cycle++
	if quit {
		return ErrQuit
	}
	return nil
}

// Cycle returns the number of completed cycles.
func (l *Loop) Cycle() uint64 {
	return l.cycle
}

// Detections returns the cached detections of the last detection cycle.
func (l *Loop) Detections() []vision.Detection {
	return l.dets
}

// Fused returns the last fused occupancy.
func (l *Loop) Fused() fusion.Occupancy {
	return l.fused
}

func (l *Loop) trackFPS(now time.Time) {
	if !l.lastStart.IsZero() {
		if dt := now.Sub(l.lastStart).Seconds(); dt > 0 {
			inst := 1 / dt
			if l.fps == 0 {
				l.fps = inst
			} else {
				l.fps = 0.9*l.fps + 0.1*inst
			}
		}
	}
	l.lastStart = now
}

func (l *Loop) snapshot(d ranging.Reading, top *vision.Detection) Status {
	st := Status{
		Cycle:      l.cycle,
		FPS:        l.fps,
		Occupancy:  l.fused,
		Distance:   d.Meters,
		HasRange:   d.OK,
		Safe:       fusion.SafeDirection(l.fused).String(),
		Haptics:    [3]int{l.pattern.Left, l.pattern.Center, l.pattern.Right},
		Detections: len(l.dets),
		LastPhrase: l.narrator.LastPhrase(),
		Muted:      l.narrator.Muted(),
		Rate:       l.voice.Rate(),
		Volume:     l.voice.Volume(),
		Voice:      l.voice.Voice(),
	}
	if !d.OK {
		st.Distance = 0
	}
	if top != nil {
		st.Top = top.Label
	}
	if l.sos != nil {
		st.SOS = SOSState{
			Enabled: l.sos.Enabled(),
			Busy:    l.sos.Busy(),
			Presses: l.sos.PressCount(),
		}
		if res, ok := l.sos.Last(); ok {
			st.SOS.LastSent = res.Sent
			st.SOS.LastChannel = res.Channel
			st.SOS.LastAt = res.Event.Created.Format(time.RFC3339)
			if res.Err != nil {
				st.SOS.LastError = res.Err.Error()
			}
		}
	}
	return st
}

func (l *Loop) say(text string, window time.Duration) {
	if err := l.voice.SpeakAsync(text, window); err != nil {
		l.logger.Debug("phrase not queued", "text", text, "reason", err)
	}
}

// shutdown releases collaborators in dependency order. An alert still in
// flight is allowed to finish before speech stops so its announcement is
// heard.
func (l *Loop) shutdown() {
	l.cancel()
	l.narrator.Close()
	if l.overlay != nil {
		l.closeLogged("overlay", l.overlay.Close)
	}
	l.closeLogged("frame source", l.source.Close)
	l.closeLogged("detector", l.detector.Close)
	l.closeLogged("range sensor", l.rng.Close)
	if l.haptics != nil {
		l.closeLogged("haptics", l.haptics.Close)
	}
	if l.sos != nil && l.sos.Busy() {
		l.logger.Info("waiting for SOS alert to finish")
		l.sos.Wait()
	}
	l.voice.Stop()
	l.logger.Info("✅ cleanup complete", "cycles", l.cycle)
}

func (l *Loop) closeLogged(what string, closeFn func() error) {
	guard(l.logger, what, func() {
		if err := closeFn(); err != nil {
			l.logger.Warn("close failed", "what", what, "error", err)
		}
	})
}
