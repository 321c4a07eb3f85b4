package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wujunwei928/edge-tts-go/edge_tts"
)

const providerEdge = "edge"

// DefaultEdgeVoice is the default Edge neural voice.
const DefaultEdgeVoice = "en-US-AriaNeural"

// edgeVoices are clear English voices suited to short navigation phrases.
var edgeVoices = []string{
	DefaultEdgeVoice,
	"en-US-GuyNeural",
	"en-US-JennyNeural",
	"en-GB-SoniaNeural",
	"en-GB-RyanNeural",
	"en-IN-NeerjaNeural",
	"en-AU-NatashaNeural",
}

// edgeStream fetches MP3 audio for text spoken by voice.
type edgeStream func(text, voice string, timeout time.Duration) ([]byte, error)

// Edge implements Provider using Microsoft Edge's online neural voices.
// No API key is needed. Output is MP3 which is decoded to PCM.
type Edge struct {
	config *Config
	logger *slog.Logger
	stream edgeStream
}

// NewEdge creates an Edge TTS provider.
func NewEdge(opts ...Option) (*Edge, error) {
	cfg := DefaultConfig()
	cfg.Voice = DefaultEdgeVoice
	cfg.Apply(opts...)

	if cfg.Voice == "" {
		cfg.Voice = DefaultEdgeVoice
	}

	return &Edge{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.edge"),
		stream: streamEdge,
	}, nil
}

func streamEdge(text, voice string, timeout time.Duration) ([]byte, error) {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	comm, err := edge_tts.NewCommunicate(text,
		edge_tts.SetVoice(voice),
		edge_tts.SetReceiveTimeout(secs))
	if err != nil {
		return nil, fmt.Errorf("create communicate: %w", err)
	}
	data, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return data, nil
}

type edgeResult struct {
	mp3 []byte
	err error
}

// Synthesize fetches MP3 audio for req and decodes it.
func (e *Edge) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	if req.Text == "" {
		return nil, WrapError(providerEdge, ErrEmptyText)
	}
	start := time.Now()

	voice := req.Voice
	if voice == "" {
		voice = e.config.Voice
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	// The edge client has no context support; run it aside and abandon it on timeout.
	done := make(chan edgeResult, 1)
	go func() {
		data, err := e.stream(req.Text, voice, e.config.Timeout)
		done <- edgeResult{mp3: data, err: err}
	}()

	var res edgeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, WrapError(providerEdge, ctx.Err())
	}
	if res.err != nil {
		return nil, WrapError(providerEdge, res.err)
	}
	if len(res.mp3) == 0 {
		return nil, WrapError(providerEdge, ErrEmptyAudio)
	}

	pcm, format, err := DecodeMP3(res.mp3)
	if err != nil {
		return nil, WrapError(providerEdge, err)
	}

	latency := time.Since(start).Milliseconds()
	e.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(pcm),
		"latency_ms", latency,
		"voice", voice,
	)

	return &AudioResult{
		Audio:     pcm,
		Format:    format,
		Duration:  DurationOf(len(pcm), format),
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Voices returns the curated English voice list.
func (e *Edge) Voices() []string {
	return edgeVoices
}

// Health synthesizes a one word probe.
func (e *Edge) Health(ctx context.Context) error {
	_, err := e.Synthesize(ctx, Request{Text: "ok"})
	return err
}

// Close releases resources.
func (e *Edge) Close() error {
	return nil
}

// Verify Edge implements Provider at compile time.
var _ Provider = (*Edge)(nil)
