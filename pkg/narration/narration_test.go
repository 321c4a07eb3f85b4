package narration_test

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/internal/log"
	"github.com/teslashibe/go-pathfinder/pkg/fusion"
	"github.com/teslashibe/go-pathfinder/pkg/narration"
	"github.com/teslashibe/go-pathfinder/pkg/ranging"
	"github.com/teslashibe/go-pathfinder/pkg/vision"
)

// recordingSpeaker captures delivered phrases.
type recordingSpeaker struct {
	mu      sync.Mutex
	phrases []string
	windows []time.Duration
}

func (r *recordingSpeaker) SpeakAsync(text string, window time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phrases = append(r.phrases, text)
	r.windows = append(r.windows, window)
	return nil
}

func (r *recordingSpeaker) spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.phrases...)
}

const frameWidth = 640

func person(x1, x2 int) *vision.Detection {
	return &vision.Detection{Label: "person", Confidence: 0.9, Box: image.Rect(x1, 100, x2, 400)}
}

func newScheduler(cfg narration.Config, gen narration.Generator) (*narration.Scheduler, *recordingSpeaker, *clock.Mock) {
	clk := clock.NewMock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	sp := &recordingSpeaker{}
	return narration.NewScheduler(cfg, gen, sp, clk, log.Discard()), sp, clk
}

func TestPrompt(t *testing.T) {
	p := narration.Prompt(narration.Context{Label: "chair", Sector: "left", Distance: ranging.At(1.2), Obstacle: true})
	assert.True(t, strings.HasSuffix(p, "Context: chair left, 1.2 meters."), p)
	assert.Contains(t, p, "max 6 words")

	clearPrompt := narration.Prompt(narration.Context{Sector: "ahead", Distance: ranging.At(3)})
	assert.True(t, strings.HasSuffix(clearPrompt, "Context: clear ahead."), clearPrompt)
}

func TestTemplates(t *testing.T) {
	assert.Equal(t, "chair left, 1.2 meters", narration.ObjectPhrase("chair", fusion.Left, ranging.At(1.2)))
	assert.Equal(t, "person ahead", narration.ObjectPhrase("person", fusion.Center, ranging.Unavailable))

	assert.Equal(t, "Obstacle ahead and right, 0.9 meters",
		narration.GenericPhrase(fusion.Occupancy{false, true, true}, ranging.At(0.9)))
	assert.Equal(t, "clear", narration.GenericPhrase(fusion.Occupancy{}, ranging.Unavailable))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "Chair on your left", narration.Clean("  \"Chair on your  left\"\n"))
	long := strings.Repeat("a", 120)
	assert.Len(t, narration.Clean(long), narration.MaxPhraseLen)
}

func TestScheduler_ObjectTrack(t *testing.T) {
	s, sp, clk := newScheduler(narration.DefaultConfig(), nil)
	left := person(0, 100) // cx=50 < 213

	dec := s.Step(left, frameWidth, fusion.Occupancy{true, false, false}, ranging.At(1.2))
	assert.Equal(t, narration.TrackObject, dec.Track)
	assert.Equal(t, "person left, 1.2 meters", dec.Text)
	assert.True(t, dec.Delivered)

	// Same key inside the interval stays quiet
	clk.Advance(time.Second)
	dec = s.Step(left, frameWidth, fusion.Occupancy{true, false, false}, ranging.At(1.2))
	assert.Equal(t, narration.TrackNone, dec.Track)

	// A new sector speaks at once
	right := person(500, 600)
	dec = s.Step(right, frameWidth, fusion.Occupancy{false, false, true}, ranging.Unavailable)
	assert.Equal(t, "person right", dec.Text)

	// The same key again after more than 1.5 s
	clk.Advance(1501 * time.Millisecond)
	dec = s.Step(right, frameWidth, fusion.Occupancy{false, false, true}, ranging.Unavailable)
	assert.Equal(t, narration.TrackObject, dec.Track)

	assert.Equal(t, []string{"person left, 1.2 meters", "person right", "person right"}, sp.spoken())
	assert.Equal(t, 800*time.Millisecond, sp.windows[0])
}

func TestScheduler_ObjectIntervalEdgeIsQuiet(t *testing.T) {
	s, _, clk := newScheduler(narration.DefaultConfig(), nil)
	p := person(300, 340)

	s.Step(p, frameWidth, fusion.Occupancy{false, true, false}, ranging.Unavailable)
	clk.Advance(1500 * time.Millisecond)
	dec := s.Step(p, frameWidth, fusion.Occupancy{false, true, false}, ranging.Unavailable)
	assert.Equal(t, narration.TrackNone, dec.Track, "exactly 1.5 s is not strictly greater")
}

func TestScheduler_GenericTrack(t *testing.T) {
	s, sp, clk := newScheduler(narration.DefaultConfig(), nil)
	blocked := fusion.Occupancy{false, true, false}

	dec := s.Step(nil, frameWidth, blocked, ranging.At(0.9))
	assert.Equal(t, narration.TrackGeneric, dec.Track)
	assert.Equal(t, "Obstacle ahead, 0.9 meters", dec.Text)

	clk.Advance(time.Second)
	dec = s.Step(nil, frameWidth, blocked, ranging.At(0.9))
	assert.Equal(t, narration.TrackNone, dec.Track)

	clk.Advance(300 * time.Millisecond)
	dec = s.Step(nil, frameWidth, fusion.Occupancy{}, ranging.Unavailable)
	assert.Equal(t, "clear", dec.Text)

	require.Len(t, sp.windows, 2)
	assert.Equal(t, time.Second, sp.windows[1])
}

func TestScheduler_ObjectEmissionResetsGenericTimer(t *testing.T) {
	s, _, clk := newScheduler(narration.DefaultConfig(), nil)

	s.Step(person(300, 340), frameWidth, fusion.Occupancy{false, true, false}, ranging.Unavailable)
	clk.Advance(time.Second)
	dec := s.Step(nil, frameWidth, fusion.Occupancy{}, ranging.Unavailable)
	assert.Equal(t, narration.TrackNone, dec.Track)
}

func TestScheduler_MutedAdvancesTimers(t *testing.T) {
	s, sp, clk := newScheduler(narration.DefaultConfig(), nil)
	s.SetMuted(true)

	dec := s.Step(nil, frameWidth, fusion.Occupancy{}, ranging.Unavailable)
	assert.Equal(t, narration.TrackGeneric, dec.Track)
	assert.False(t, dec.Delivered)
	assert.Empty(t, sp.spoken())

	assert.False(t, s.ToggleMute())
	clk.Advance(500 * time.Millisecond)
	dec = s.Step(nil, frameWidth, fusion.Occupancy{}, ranging.Unavailable)
	assert.Equal(t, narration.TrackNone, dec.Track, "timer advanced while muted")
}

func TestScheduler_SyncGenerator(t *testing.T) {
	gen := narration.NewMock("Person close on your left")
	s, sp, _ := newScheduler(narration.DefaultConfig(), gen)

	dec := s.Step(person(0, 100), frameWidth, fusion.Occupancy{true, false, false}, ranging.At(0.8))
	assert.True(t, dec.Generated)
	assert.Equal(t, []string{"Person close on your left"}, sp.spoken())

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, narration.Context{Label: "person", Sector: "left", Distance: ranging.At(0.8), Obstacle: true}, calls[0])
}

func TestScheduler_SyncGeneratorTimeoutFallsBack(t *testing.T) {
	gen := &narration.Mock{Reply: "too slow", Delay: time.Second}
	cfg := narration.DefaultConfig()
	cfg.SyncBudget = 20 * time.Millisecond
	s, sp, _ := newScheduler(cfg, gen)

	start := time.Now()
	dec := s.Step(person(0, 100), frameWidth, fusion.Occupancy{true, false, false}, ranging.Unavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, dec.Generated)
	assert.Equal(t, []string{"person left"}, sp.spoken())
}

func TestScheduler_GeneratorErrorAndPanic(t *testing.T) {
	gen := &narration.Mock{}
	gen.GenerateFunc = func(context.Context, narration.Context) (string, error) {
		return "", errors.New("quota exceeded")
	}
	s, sp, clk := newScheduler(narration.DefaultConfig(), gen)
	s.Step(nil, frameWidth, fusion.Occupancy{}, ranging.Unavailable)

	gen.GenerateFunc = func(context.Context, narration.Context) (string, error) {
		panic("boom")
	}
	clk.Advance(2 * time.Second)
	s.Step(nil, frameWidth, fusion.Occupancy{true, false, false}, ranging.Unavailable)

	assert.Equal(t, []string{"clear", "Obstacle left"}, sp.spoken())
}

func TestScheduler_AsyncReplacement(t *testing.T) {
	release := make(chan struct{})
	gen := &narration.Mock{}
	gen.GenerateFunc = func(ctx context.Context, _ narration.Context) (string, error) {
		select {
		case <-release:
			return "Chair ahead, careful", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	cfg := narration.DefaultConfig()
	cfg.Async = true
	s, sp, _ := newScheduler(cfg, gen)

	chair := &vision.Detection{Label: "chair", Confidence: 0.7, Box: image.Rect(300, 0, 340, 10)}
	dec := s.Step(chair, frameWidth, fusion.Occupancy{false, true, false}, ranging.Unavailable)
	assert.Equal(t, "chair ahead", dec.Text, "template is spoken at once")
	assert.True(t, s.Pending())

	_, ok := s.Poll()
	assert.False(t, ok, "nothing ready yet")

	close(release)
	require.Eventually(t, func() bool {
		text, ok := s.Poll()
		return ok && text == "Chair ahead, careful"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"chair ahead", "Chair ahead, careful"}, sp.spoken())
	assert.False(t, s.Pending())
	assert.Equal(t, "Chair ahead, careful", s.LastPhrase())
}

func TestScheduler_NewEmissionCancelsInFlight(t *testing.T) {
	var mu sync.Mutex
	var cancelled int
	gen := &narration.Mock{}
	gen.GenerateFunc = func(ctx context.Context, _ narration.Context) (string, error) {
		<-ctx.Done()
		mu.Lock()
		cancelled++
		mu.Unlock()
		return "", ctx.Err()
	}
	cfg := narration.DefaultConfig()
	cfg.Async = true
	s, _, clk := newScheduler(cfg, gen)

	s.Step(person(0, 100), frameWidth, fusion.Occupancy{true, false, false}, ranging.Unavailable)
	clk.Advance(10 * time.Millisecond)
	s.Step(person(500, 600), frameWidth, fusion.Occupancy{false, false, true}, ranging.Unavailable)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return cancelled >= 1
	}, 2*time.Second, 5*time.Millisecond)

	s.Close()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return cancelled == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_Repeat(t *testing.T) {
	s, sp, _ := newScheduler(narration.DefaultConfig(), nil)
	assert.False(t, s.Repeat())

	s.Step(nil, frameWidth, fusion.Occupancy{}, ranging.Unavailable)
	assert.True(t, s.Repeat())
	assert.Equal(t, []string{"clear", "clear"}, sp.spoken())
	assert.Equal(t, time.Duration(0), sp.windows[1])
}

func TestChain(t *testing.T) {
	failing := &narration.Mock{}
	ok := narration.NewMock("path clear")
	chain := narration.NewChain(log.Discard(), failing, ok)

	text, err := chain.Generate(context.Background(), narration.Context{})
	require.NoError(t, err)
	assert.Equal(t, "path clear", text)

	_, err = narration.NewChain(log.Discard()).Generate(context.Background(), narration.Context{})
	assert.ErrorIs(t, err, narration.ErrGeneratorDisabled)

	_, err = narration.NewChain(log.Discard(), failing).Generate(context.Background(), narration.Context{})
	var chainErr *narration.ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.ErrorIs(t, err, narration.ErrEmptyPhrase)
}

func TestGemini_Generate(t *testing.T) {
	var gotPath, gotKey, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotPrompt = body.Contents[0].Parts[0].Text
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" Chair left, 1.2 meters\n"}]}}]}`))
	}))
	defer srv.Close()

	g, err := narration.NewGemini("key-123", narration.WithGeminiBaseURL(srv.URL), narration.WithGeminiLogger(log.Discard()))
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), narration.Context{Label: "chair", Sector: "left", Distance: ranging.At(1.2), Obstacle: true})
	require.NoError(t, err)
	assert.Equal(t, "Chair left, 1.2 meters", text)
	assert.Equal(t, "/models/gemini-1.5-flash:generateContent", gotPath)
	assert.Equal(t, "key-123", gotKey)
	assert.Contains(t, gotPrompt, "Context: chair left, 1.2 meters.")
}

func TestGemini_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer srv.Close()

	g, err := narration.NewGemini("k", narration.WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), narration.Context{})
	var apiErr *narration.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "quota", apiErr.Message)
	assert.True(t, apiErr.IsRetryable())
}

func TestNewGemini_NoKey(t *testing.T) {
	_, err := narration.NewGemini("")
	assert.ErrorIs(t, err, narration.ErrNoAPIKey)

	_, err = narration.NewOpenAI("", "", "", nil)
	assert.ErrorIs(t, err, narration.ErrNoAPIKey)
}

func TestOpenAI_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Door right"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o, err := narration.NewOpenAI("sk-test", srv.URL+"/v1", "", log.Discard())
	require.NoError(t, err)

	text, err := o.Generate(context.Background(), narration.Context{Label: "door", Sector: "right", Obstacle: true})
	require.NoError(t, err)
	assert.Equal(t, "Door right", text)
}
