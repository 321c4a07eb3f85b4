package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	providerOpenAI = "openai"

	// openAIPCMRate is the fixed rate of the "pcm" response format.
	openAIPCMRate = 24000
)

// OpenAI voices, in the order NextVoice cycles through them.
const (
	VoiceNova    = string(openai.VoiceNova)
	VoiceAlloy   = string(openai.VoiceAlloy)
	VoiceEcho    = string(openai.VoiceEcho)
	VoiceFable   = string(openai.VoiceFable)
	VoiceOnyx    = string(openai.VoiceOnyx)
	VoiceShimmer = string(openai.VoiceShimmer)
)

var openAIVoices = []string{VoiceNova, VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx, VoiceShimmer}

// OpenAI implements Provider with the OpenAI speech endpoint. It asks for raw
// PCM so nothing has to be decoded on the device.
type OpenAI struct {
	config *Config
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI provider. WithBaseURL takes an API root such
// as "https://api.openai.com/v1".
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = string(openai.TTSModel1)
	cfg.Voice = VoiceNova
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Voice == "" {
		cfg.Voice = VoiceNova
	}

	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	cc.HTTPClient = cfg.HTTPClient

	return &OpenAI{
		config: cfg,
		client: openai.NewClientWithConfig(cc),
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Synthesize requests 24 kHz PCM16 mono audio.
func (o *OpenAI) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	if req.Text == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}
	start := time.Now()

	voice := req.Voice
	if voice == "" {
		voice = o.config.Voice
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	audio, err := o.fetch(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.config.ModelID),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, WrapError(providerOpenAI, ErrEmptyAudio)
	}

	latency := time.Since(start).Milliseconds()
	o.logger.Debug("synthesized", "chars", len(req.Text), "bytes", len(audio), "latency_ms", latency, "voice", voice)

	format := PCM16Mono(openAIPCMRate)
	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  DurationOf(len(audio), format),
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// fetch runs the request, retrying rate limits and server errors up to
// MaxRetries times.
func (o *OpenAI) fetch(ctx context.Context, sr openai.CreateSpeechRequest) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}
			o.logger.Warn("retrying speech request", "attempt", attempt+1, "error", lastErr)
		}

		resp, err := o.client.CreateSpeech(ctx, sr)
		if err != nil {
			lastErr = convertError(err)
			var apiErr *APIError
			if errors.As(lastErr, &apiErr) && !apiErr.IsRetryable() {
				return nil, lastErr
			}
			continue
		}
		audio, err := io.ReadAll(resp)
		resp.Close()
		if err != nil {
			return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
		}
		return audio, nil
	}
	return nil, lastErr
}

// Voices returns the built-in OpenAI voices.
func (o *OpenAI) Voices() []string {
	return openAIVoices
}

// Health lists models to check the key and connectivity.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return convertError(err)
	}
	return nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	return nil
}

// convertError maps go-openai errors onto APIError.
func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Provider:   providerOpenAI,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Provider:   providerOpenAI,
		}
	}
	return WrapError(providerOpenAI, err)
}

var _ Provider = (*OpenAI)(nil)
