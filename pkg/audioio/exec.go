package audioio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// ExecPlayer plays raw PCM16 by piping it to an external tool's stdin.
type ExecPlayer struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewExecPlayer creates a player that runs cfg.PlayCommand per chunk.
func NewExecPlayer(cfg Config, logger *slog.Logger) *ExecPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecPlayer{cfg: cfg, logger: logger.With("component", "audioio.exec_player")}
}

// Play pipes chunk through the play tool and waits for it to exit.
// Cancelling ctx kills the tool, which is how queued speech is interrupted.
func (p *ExecPlayer) Play(ctx context.Context, chunk AudioChunk) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if len(chunk.Samples) == 0 {
		return nil
	}

	args := PlayArgs(p.cfg.PlayCommand, p.cfg.Device, chunk.SampleRate, chunk.Channels)
	cmd := exec.CommandContext(ctx, p.cfg.PlayCommand, args...)
	cmd.Stdin = bytes.NewReader(chunk.Bytes())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", p.cfg.PlayCommand, err, bytes.TrimSpace(stderr.Bytes()))
	}
	p.logger.Debug("played audio", "duration", chunk.Duration(), "elapsed", time.Since(start))
	return nil
}

// Name returns "exec".
func (p *ExecPlayer) Name() string { return string(BackendExec) }

// Close stops future playback.
func (p *ExecPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// ExecRecorder captures raw PCM16 from an external tool's stdout.
type ExecRecorder struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewExecRecorder creates a recorder that runs cfg.RecordCommand per capture.
func NewExecRecorder(cfg Config, logger *slog.Logger) *ExecRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRecorder{cfg: cfg, logger: logger.With("component", "audioio.exec_recorder")}
}

// Record runs the record tool for d and returns the captured audio.
func (r *ExecRecorder) Record(ctx context.Context, d time.Duration) (AudioChunk, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return AudioChunk{}, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	args := RecordArgs(r.cfg.RecordCommand, r.cfg.Device, r.cfg.SampleRate, r.cfg.Channels)
	cmd := exec.CommandContext(ctx, r.cfg.RecordCommand, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	chunk := AudioChunk{SampleRate: r.cfg.SampleRate, Channels: r.cfg.Channels}
	chunk.FromBytes(stdout.Bytes(), r.cfg.SampleRate, r.cfg.Channels)

	// The deadline killing the tool is the normal way a capture ends
	if err != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return chunk, fmt.Errorf("%s: %w: %s", r.cfg.RecordCommand, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return chunk, nil
}

// Name returns "exec".
func (r *ExecRecorder) Name() string { return string(BackendExec) }

// Close stops future captures.
func (r *ExecRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// PlayArgs builds the argument list for playing raw PCM16 from stdin.
// aplay and sox's play are understood; anything else gets the aplay flags.
func PlayArgs(tool, device string, rate, channels int) []string {
	if tool == "play" {
		return []string{"-q", "-t", "raw", "-e", "signed-integer", "-b", "16",
			"-r", strconv.Itoa(rate), "-c", strconv.Itoa(channels), "-"}
	}
	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", strconv.Itoa(rate), "-c", strconv.Itoa(channels)}
	if device != "" {
		args = append(args, "-D", device)
	}
	return append(args, "-")
}

// RecordArgs builds the argument list for capturing raw PCM16 to stdout.
func RecordArgs(tool, device string, rate, channels int) []string {
	if tool == "rec" {
		return []string{"-q", "-t", "raw", "-e", "signed-integer", "-b", "16",
			"-r", strconv.Itoa(rate), "-c", strconv.Itoa(channels), "-"}
	}
	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", strconv.Itoa(rate), "-c", strconv.Itoa(channels)}
	if device != "" {
		args = append(args, "-D", device)
	}
	return args
}
