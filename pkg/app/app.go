// Package app wires the pathfinder components together from a config.Config
// and owns their lifecycle: New, Init, Run, Shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/internal/config"
	"github.com/teslashibe/go-pathfinder/internal/mqttc"
	"github.com/teslashibe/go-pathfinder/pkg/control"
	"github.com/teslashibe/go-pathfinder/pkg/debug"
	"github.com/teslashibe/go-pathfinder/pkg/haptics"
	"github.com/teslashibe/go-pathfinder/pkg/input"
	"github.com/teslashibe/go-pathfinder/pkg/location"
	"github.com/teslashibe/go-pathfinder/pkg/narration"
	"github.com/teslashibe/go-pathfinder/pkg/ranging"
	"github.com/teslashibe/go-pathfinder/pkg/sos"
	"github.com/teslashibe/go-pathfinder/pkg/speech"
	"github.com/teslashibe/go-pathfinder/pkg/vision"
	"github.com/teslashibe/go-pathfinder/pkg/web"
)

// ErrNoVision is returned by Init when no vision backend was supplied.
var ErrNoVision = errors.New("app: no vision backend configured")

// shutdownTimeout bounds the dashboard shutdown.
const shutdownTimeout = 3 * time.Second

// VisionFactory opens the camera and the detector.
type VisionFactory func(cfg config.VisionConfig, logger *slog.Logger) (vision.FrameSource, vision.Detector, error)

// OverlayFactory opens the debug window.
type OverlayFactory func() (control.Overlay, error)

// Broker is the MQTT connection shared by haptics, buttons and alerts.
type Broker interface {
	mqttc.Publisher
	mqttc.Subscriber
}

// Option customizes an App.
type Option func(*App)

// WithVision sets the camera and detector backend.
func WithVision(f VisionFactory) Option {
	return func(a *App) { a.openVision = f }
}

// WithOverlay sets the debug window backend.
func WithOverlay(f OverlayFactory) Option {
	return func(a *App) { a.openOverlay = f }
}

// WithBroker uses b instead of dialing cfg.MQTT.Broker.
func WithBroker(b Broker) Option {
	return func(a *App) { a.broker = b }
}

// WithClock sets the clock for the loop and its collaborators.
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.clk = c }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// App is the pathfinder application orchestrator.
type App struct {
	config config.Config
	clk    clock.Clock
	logger *slog.Logger

	openVision  VisionFactory
	openOverlay OverlayFactory

	// Transport
	broker     Broker
	ownsBroker bool

	// Perception
	source   vision.FrameSource
	detector vision.Detector
	rng      ranging.Sensor
	overlay  control.Overlay

	// Feedback
	haptics  *haptics.Driver
	speech   *speech.Output
	narrator *narration.Scheduler
	listener speech.Listener

	// Safety
	locator location.Provider
	gps     *location.GPS
	sos     *sos.Dispatcher

	input *input.Bus
	web   *web.Server
	loop  *control.Loop

	ran bool
}

// New validates cfg and creates an App. Components are built by Init.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	debug.Enabled = cfg.Debug

	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.clk == nil {
		a.clk = clock.Real{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Init builds every component. Call it after New and before Run.
func (a *App) Init(ctx context.Context) error {
	a.logger.Info("🧭 Pathfinder - assistive navigation")
	if debug.Enabled {
		a.logger.Info("🐛 debug mode enabled")
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"mqtt", a.initBroker},
		{"vision", a.initVision},
		{"range", a.initRange},
		{"haptics", a.initHaptics},
		{"speech", a.initSpeech},
		{"narration", a.initNarration},
		{"listener", a.initListener},
		{"location", a.initLocation},
		{"sos", a.initSOS},
		{"input", a.initInput},
		{"dashboard", a.initDashboard},
		{"overlay", a.initOverlay},
		{"loop", a.initLoop},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s init: %w", s.name, err)
		}
	}
	return nil
}

// Run starts the control loop and the dashboard and blocks until the loop
// stops. A quit event or a cancelled ctx is a clean exit.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return errors.New("app: Run called before Init")
	}
	a.ran = true
	a.logger.Info("🚶 Pathfinder running (Ctrl+C to exit)")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return a.loop.Run(gctx)
	})

	if a.web != nil {
		g.Go(func() error {
			err := a.web.Start()
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return a.web.Shutdown(sctx)
		})
	}

	return g.Wait()
}

// Shutdown releases what the control loop does not own. If Run was never
// called the loop collaborators are released too.
func (a *App) Shutdown() {
	a.logger.Info("👋 Goodbye!")

	if !a.ran {
		closeQuiet(a.logger, "overlay", a.overlay)
		closeQuiet(a.logger, "frame source", a.source)
		closeQuiet(a.logger, "detector", a.detector)
		closeQuiet(a.logger, "range sensor", a.rng)
		if a.haptics != nil {
			closeQuiet(a.logger, "haptics", a.haptics)
		}
		if a.narrator != nil {
			a.narrator.Close()
		}
		if a.speech != nil {
			a.speech.Stop()
		}
	}
	if a.input != nil {
		a.input.Close()
	}
	if a.gps != nil {
		closeQuiet(a.logger, "gps", a.gps)
	}
	if a.ownsBroker {
		if c, ok := a.broker.(io.Closer); ok {
			closeQuiet(a.logger, "mqtt", c)
		}
	}
}

// Input returns the event bus. It is nil before Init.
func (a *App) Input() *input.Bus { return a.input }

// Dashboard returns the dashboard server, nil when disabled.
func (a *App) Dashboard() *web.Server { return a.web }

// Loop returns the control loop. It is nil before Init.
func (a *App) Loop() *control.Loop { return a.loop }

func closeQuiet(logger *slog.Logger, what string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "what", what, "error", err)
	}
}
