package audioio

import (
	"fmt"
	"log/slog"
	"os/exec"
)

// NewPlayer creates an audio player with the given configuration.
// If cfg.Backend is BackendAuto, exec is used when the play tool exists.
func NewPlayer(cfg Config, logger *slog.Logger) (Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBackend(cfg.PlayCommand)
	}

	logger.Info("creating audio player", "backend", backend, "device", cfg.Device)

	switch backend {
	case BackendMock:
		return NewMockPlayer(), nil
	case BackendExec:
		return NewExecPlayer(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewRecorder creates an audio recorder with the given configuration.
func NewRecorder(cfg Config, logger *slog.Logger) (Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBackend(cfg.RecordCommand)
	}

	logger.Info("creating audio recorder",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch backend {
	case BackendMock:
		return NewMockRecorder(cfg), nil
	case BackendExec:
		return NewExecRecorder(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBackend returns exec when tool is on PATH.
func detectBackend(tool string) Backend {
	if tool == "" {
		return BackendMock
	}
	if _, err := exec.LookPath(tool); err != nil {
		return BackendMock
	}
	return BackendExec
}
