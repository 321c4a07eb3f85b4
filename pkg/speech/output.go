// Package speech queues spoken phrases for playback and recognizes short
// voice commands.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/pkg/audioio"
	"github.com/teslashibe/go-pathfinder/pkg/tts"
)

// Speech rate limits in words per minute.
const (
	DefaultRate = 200
	MinRate     = 80
	MaxRate     = 300
)

// DefaultQueueSize is the number of phrases that may wait for playback.
const DefaultQueueSize = 16

// pollInterval bounds how long the worker waits before rechecking stop.
const pollInterval = 100 * time.Millisecond

var (
	// ErrQueueFull is returned when a phrase is dropped because the queue is full.
	ErrQueueFull = errors.New("speech: queue full")

	// ErrDuplicate is returned when a phrase repeats the last one inside its window.
	ErrDuplicate = errors.New("speech: duplicate phrase")

	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("speech: output stopped")
)

// Speaker accepts phrases without blocking the caller.
type Speaker interface {
	SpeakAsync(text string, window time.Duration) error
}

// Output speaks queued phrases on a single worker goroutine.
//
// The queue is bounded and never blocks producers: when it is full the new
// phrase is dropped. A phrase equal to the previous accepted one is dropped
// when it arrives within the caller's dedupe window.
type Output struct {
	provider tts.Provider
	player   audioio.Player
	clk      clock.Clock
	logger   *slog.Logger
	timeout  time.Duration

	queue chan string

	mu       sync.Mutex
	lastText string
	lastTime time.Time
	voices   []string
	voiceIdx int
	rate     int
	volume   float64
	playing  context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Option configures an Output.
type Option func(*Output)

// WithClock sets the clock used for dedupe windows.
func WithClock(c clock.Clock) Option {
	return func(o *Output) { o.clk = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Output) { o.logger = l }
}

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) Option {
	return func(o *Output) {
		if n > 0 {
			o.queue = make(chan string, n)
		}
	}
}

// WithVoice selects the starting voice by name. Unknown names are ignored.
func WithVoice(name string) Option {
	return func(o *Output) {
		for i, v := range o.voices {
			if v == name {
				o.voiceIdx = i
				return
			}
		}
	}
}

// WithVoiceIndex selects the starting voice by index into the provider's list.
func WithVoiceIndex(i int) Option {
	return func(o *Output) {
		if i >= 0 && i < len(o.voices) {
			o.voiceIdx = i
		}
	}
}

// WithRate sets the starting rate in words per minute.
func WithRate(wpm int) Option {
	return func(o *Output) {
		if wpm > 0 {
			o.rate = clampInt(wpm, MinRate, MaxRate)
		}
	}
}

// WithVolume sets the starting volume in [0,1].
func WithVolume(v float64) Option {
	return func(o *Output) { o.volume = clampFloat(v, 0, 1) }
}

// WithSynthesisTimeout bounds a single synthesis call.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(o *Output) { o.timeout = d }
}

// NewOutput creates an Output. Call Start to launch the worker.
func NewOutput(provider tts.Provider, player audioio.Player, opts ...Option) *Output {
	o := &Output{
		provider: provider,
		player:   player,
		clk:      clock.Real{},
		logger:   slog.Default(),
		timeout:  10 * time.Second,
		queue:    make(chan string, DefaultQueueSize),
		voices:   provider.Voices(),
		rate:     DefaultRate,
		volume:   1.0,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "speech.output")
	return o
}

// Start launches the worker. It is safe to call more than once.
func (o *Output) Start() {
	o.startOnce.Do(func() {
		o.wg.Add(1)
		go o.run()
	})
}

// SpeakAsync queues text for playback.
func (o *Output) SpeakAsync(text string, window time.Duration) error {
	if text == "" {
		return nil
	}
	select {
	case <-o.stopCh:
		return ErrStopped
	default:
	}

	o.mu.Lock()
	now := o.clk.Now()
	if text == o.lastText && now.Sub(o.lastTime) < window {
		o.mu.Unlock()
		return ErrDuplicate
	}
	o.lastText, o.lastTime = text, now
	o.mu.Unlock()

	select {
	case o.queue <- text:
		return nil
	default:
		o.logger.Debug("speech queue full, dropping", "text", text)
		return ErrQueueFull
	}
}

// Pending returns the number of queued phrases.
func (o *Output) Pending() int {
	return len(o.queue)
}

// Stop signals the worker, interrupts current playback and waits for it to
// exit. Queued phrases are discarded.
func (o *Output) Stop() {
	o.stopOnce.Do(func() {
		close(o.stopCh)
		o.mu.Lock()
		if o.playing != nil {
			o.playing()
		}
		o.mu.Unlock()
	})
	o.wg.Wait()
}

func (o *Output) run() {
	defer o.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case text := <-o.queue:
			o.speak(text)
		case <-ticker.C:
		}
	}
}

// speak synthesizes and plays one phrase. Failures are logged and dropped.
func (o *Output) speak(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	o.mu.Lock()
	select {
	case <-o.stopCh:
		o.mu.Unlock()
		cancel()
		return
	default:
	}
	o.playing = cancel
	voice := o.currentVoiceLocked()
	rate, volume := o.rate, o.volume
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.playing = nil
		o.mu.Unlock()
		cancel()
		if r := recover(); r != nil {
			o.logger.Error("speech panic recovered", "panic", r)
		}
	}()

	o.logger.Info("speak", "text", text)
	result, err := o.provider.Synthesize(ctx, tts.Request{Text: text, Voice: voice})
	if err != nil {
		o.logger.Warn("synthesis failed", "text", text, "error", err)
		return
	}

	chunk := audioio.AudioChunk{Channels: 1, SampleRate: result.Format.SampleRate}
	chunk.FromBytes(result.Audio, result.Format.SampleRate, 1)
	chunk.Samples = Shape(chunk.Samples, chunk.SampleRate, rate, volume)

	// Playback gets its own bound since long phrases outlast the synthesis timeout
	playCtx, playCancel := context.WithTimeout(context.Background(), chunk.Duration()+2*time.Second)
	defer playCancel()
	o.mu.Lock()
	o.playing = func() { cancel(); playCancel() }
	o.mu.Unlock()

	if err := o.player.Play(playCtx, chunk); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn("playback failed", "error", err)
	}
}

// Shape applies rate and volume to PCM samples. Rate is realized by
// resampling relative to DefaultRate, so faster speech is also higher pitched.
func Shape(samples []int16, sampleRate, rate int, volume float64) []int16 {
	if rate > 0 && rate != DefaultRate {
		samples = audioio.Resample(samples, sampleRate*rate/DefaultRate, sampleRate)
	}
	return audioio.ApplyGain(samples, volume)
}

// AdjustRate changes the speaking rate by delta words per minute and returns the new rate.
func (o *Output) AdjustRate(delta int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rate = clampInt(o.rate+delta, MinRate, MaxRate)
	o.logger.Info("rate changed", "rate", o.rate)
	return o.rate
}

// Rate returns the speaking rate in words per minute.
func (o *Output) Rate() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate
}

// AdjustVolume changes the volume by delta and returns the new volume.
func (o *Output) AdjustVolume(delta float64) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = clampFloat(o.volume+delta, 0, 1)
	o.logger.Info("volume changed", "volume", o.volume)
	return o.volume
}

// Volume returns the playback volume in [0,1].
func (o *Output) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// NextVoice advances to the next voice and returns its name. It returns
// false when the provider offers no voices.
func (o *Output) NextVoice() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.voices) == 0 {
		return "", false
	}
	o.voiceIdx = (o.voiceIdx + 1) % len(o.voices)
	name := o.voices[o.voiceIdx]
	o.logger.Info("voice changed", "index", o.voiceIdx, "voice", name)
	return name, true
}

// Voice returns the current voice name, or "" when the provider has none.
func (o *Output) Voice() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentVoiceLocked()
}

func (o *Output) currentVoiceLocked() string {
	if len(o.voices) == 0 {
		return ""
	}
	return o.voices[o.voiceIdx]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
