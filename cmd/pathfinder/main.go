// Pathfinder - wearable obstacle detection and navigation aid.
// Camera, range sensor and haptics feed a 15 Hz loop that speaks what is
// ahead and raises SOS alerts on request.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-pathfinder/internal/config"
	plog "github.com/teslashibe/go-pathfinder/internal/log"
	"github.com/teslashibe/go-pathfinder/pkg/app"
	"github.com/teslashibe/go-pathfinder/pkg/control"
	"github.com/teslashibe/go-pathfinder/pkg/debug"
	"github.com/teslashibe/go-pathfinder/pkg/vision"
	"github.com/teslashibe/go-pathfinder/pkg/vision/cv"
)

func main() {
	cfg := parseFlags()

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	plog.Init(level)

	a, err := app.New(cfg,
		app.WithVision(openVision),
		app.WithOverlay(openWindow),
		app.WithLogger(plog.L()))
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		a.Shutdown()
		log.Fatalf("❌ Initialization failed: %v", err)
	}
	defer a.Shutdown()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("❌ Runtime error: %v", err)
	}
}

// parseFlags loads the config file and environment, then applies flags.
func parseFlags() config.Config {
	configPath := flag.String("config", "", "YAML config file (overrides PATHFINDER_CONFIG)")
	debugFlag := flag.Bool("debug", false, "Enable debug logging and the overlay window")
	debugCycles := flag.Bool("debug-cycles", false, "Log every control cycle (very verbose)")
	camera := flag.Int("camera", -1, "Camera index")
	model := flag.String("model", "", "YOLO ONNX model path")
	obstacles := flag.Bool("obstacles-only", false, "Only report obstacle classes")
	dashboard := flag.String("dashboard", "", "Serve the status dashboard on this address")
	listen := flag.Bool("listen", false, "Enable voice commands")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	cfg.Debug = cfg.Debug || *debugFlag
	debug.Cycles = *debugCycles
	if *camera >= 0 {
		cfg.Vision.Camera = *camera
	}
	if *model != "" {
		cfg.Vision.Model = *model
	}
	cfg.Vision.ObstaclesOnly = cfg.Vision.ObstaclesOnly || *obstacles
	if *dashboard != "" {
		cfg.Dashboard.Enabled = true
		cfg.Dashboard.Addr = *dashboard
	}
	cfg.Speech.Listen = cfg.Speech.Listen || *listen
	return cfg
}

// openVision opens the camera and the YOLO detector.
func openVision(vc config.VisionConfig, logger *slog.Logger) (vision.FrameSource, vision.Detector, error) {
	camCfg := cv.DefaultCameraConfig()
	camCfg.Device = vc.Camera
	camCfg.Width, camCfg.Height = vc.Width, vc.Height

	cam, err := cv.OpenCamera(camCfg)
	if err != nil {
		return nil, nil, err
	}
	det, err := cv.NewYOLO(vc.Model, logger)
	if err != nil {
		cam.Close()
		return nil, nil, err
	}
	return cam, det, nil
}

func openWindow() (control.Overlay, error) {
	return cv.NewWindow(), nil
}
