package speech

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-pathfinder/pkg/audioio"
)

// Command is a recognized voice command.
type Command string

// Recognized commands.
const (
	CommandLeft   Command = "left"
	CommandRight  Command = "right"
	CommandStop   Command = "stop"
	CommandRepeat Command = "repeat"
	CommandHelp   Command = "help"
)

// commandPriority is the match order when an utterance holds several command words.
var commandPriority = []Command{CommandHelp, CommandStop, CommandRepeat, CommandLeft, CommandRight}

// ParseCommand finds a command word in a transcript.
func ParseCommand(text string) (Command, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[w] = true
	}
	for _, c := range commandPriority {
		if seen[string(c)] {
			return c, true
		}
	}
	return "", false
}

// Listener captures a short utterance and maps it to a command.
type Listener interface {
	// ListenOnce listens for at most timeout. It returns false when nothing
	// was recognized or the recognizer is unavailable.
	ListenOnce(ctx context.Context, timeout time.Duration) (Command, bool)
}

// DefaultSilenceRMS is the normalized energy below which a capture is not transcribed.
const DefaultSilenceRMS = 0.0005

// WhisperListener records from the microphone and transcribes with the
// OpenAI audio API.
type WhisperListener struct {
	client   *openai.Client
	recorder audioio.Recorder
	model    string
	silence  float64
	logger   *slog.Logger

	mu       sync.Mutex
	disabled bool
	warned   bool
}

// NewWhisperListener creates a listener. baseURL may be empty for api.openai.com.
func NewWhisperListener(apiKey, baseURL, model string, recorder audioio.Recorder, logger *slog.Logger) *WhisperListener {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WhisperListener{
		client:   openai.NewClientWithConfig(cfg),
		recorder: recorder,
		model:    model,
		silence:  DefaultSilenceRMS,
		logger:   logger.With("component", "speech.whisper"),
	}
}

// ListenOnce implements Listener.
func (w *WhisperListener) ListenOnce(ctx context.Context, timeout time.Duration) (Command, bool) {
	w.mu.Lock()
	disabled := w.disabled
	w.mu.Unlock()
	if disabled {
		return "", false
	}

	chunk, err := w.recorder.Record(ctx, timeout)
	if err != nil {
		w.fail("recording failed", err)
		return "", false
	}
	if len(chunk.Samples) == 0 || audioio.CalculateRMS(chunk.Samples) < w.silence {
		return "", false
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(audioio.EncodeWAV(chunk)),
		Language: "en",
	})
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("transcription failed", "error", err)
		}
		return "", false
	}

	cmd, ok := ParseCommand(resp.Text)
	if ok {
		w.logger.Info("voice command", "command", cmd, "transcript", resp.Text)
	}
	return cmd, ok
}

// fail disables the listener after a device error, warning once.
func (w *WhisperListener) fail(msg string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disabled = true
	if !w.warned {
		w.logger.Warn(msg+"; voice commands disabled", "error", err)
		w.warned = true
	}
}

// MockListener returns queued commands in order.
type MockListener struct {
	mu       sync.Mutex
	commands []Command
	calls    int
}

// NewMockListener creates a listener that yields cmds one per call.
func NewMockListener(cmds ...Command) *MockListener {
	return &MockListener{commands: cmds}
}

// Push queues another command.
func (m *MockListener) Push(c Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, c)
}

// ListenOnce implements Listener.
func (m *MockListener) ListenOnce(_ context.Context, _ time.Duration) (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.commands) == 0 {
		return "", false
	}
	c := m.commands[0]
	m.commands = m.commands[1:]
	return c, true
}

// Calls returns how many times ListenOnce ran.
func (m *MockListener) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
