// Package web serves the pathfinder status dashboard: the latest loop
// snapshot over REST and websocket, and manual control events.
package web

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pathfinder/pkg/control"
	"github.com/teslashibe/go-pathfinder/pkg/hub"
	"github.com/teslashibe/go-pathfinder/pkg/input"
)

// maxLogEntries bounds the recent event log.
const maxLogEntries = 200

// LogEntry is one control event shown on the dashboard.
type LogEntry struct {
	Time   string `json:"time"`
	Event  string `json:"event"`
	Source string `json:"source"`
}

// Server is the dashboard server.
type Server struct {
	app    *fiber.App
	addr   string
	bus    *input.Bus
	logger *slog.Logger

	status   control.Status
	statusMu sync.RWMutex

	logs   []LogEntry
	logsMu sync.RWMutex

	statusHub *hub.Hub
	hubCtx    context.Context
	cancel    context.CancelFunc
	started   atomic.Bool
	hubDone   chan struct{}
}

// NewServer creates a dashboard on addr (e.g. ":8080"). bus may be nil, in
// which case manual events are rejected.
func NewServer(addr string, bus *input.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:      addr,
		bus:       bus,
		logger:    logger.With("component", "web.server"),
		logs:      make([]LogEntry, 0, maxLogEntries),
		statusHub: hub.New("status", logger),
		hubDone:   make(chan struct{}),
	}
	s.hubCtx, s.cancel = context.WithCancel(context.Background())

	if bus != nil {
		if err := bus.Observe(s.recordEvent); err != nil {
			s.logger.Warn("event log disabled", "error", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "Pathfinder Dashboard",
		DisableStartupMessage: true,
		Immutable:             true,
	})
	app.Use(cors.New())

	app.Get("/", s.handleIndex)
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleListEvents)
	api.Post("/events/:name", s.handleTriggerEvent)
	api.Get("/log", s.handleGetLog)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.statusHub.Serve))

	s.app = app
	return s
}

// App returns the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the broadcast hub and listens on the configured address. It
// blocks until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the dashboard on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	if s.started.CompareAndSwap(false, true) {
		go func() {
			defer close(s.hubDone)
			s.statusHub.Run(s.hubCtx)
		}()
	}

	s.logger.Info("🌐 dashboard listening", "url", "http://"+ln.Addr().String())
	return s.app.Listener(ln)
}

// Publish implements control.StatusSink. It stores the snapshot and
// broadcasts it to websocket clients without blocking.
func (s *Server) Publish(st control.Status) {
	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()

	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.logger.Debug("status encode failed", "error", err)
	}
}

// Status returns the last published snapshot.
func (s *Server) Status() control.Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	return s.statusHub.ClientCount()
}

// Shutdown stops the server and the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.cancel()
	if s.started.Load() {
		select {
		case <-s.hubDone:
		case <-ctx.Done():
		}
	}
	return err
}

func (s *Server) recordEvent(e input.Event) {
	entry := LogEntry{
		Time:   time.Now().Format("15:04:05"),
		Event:  e.String(),
		Source: e.Source,
	}

	s.logsMu.Lock()
	defer s.logsMu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[1:]
	}
}
