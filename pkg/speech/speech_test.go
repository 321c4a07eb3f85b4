package speech_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/internal/log"
	"github.com/teslashibe/go-pathfinder/pkg/audioio"
	"github.com/teslashibe/go-pathfinder/pkg/speech"
	"github.com/teslashibe/go-pathfinder/pkg/tts"
)

func newOutput(t *testing.T, opts ...speech.Option) (*speech.Output, *tts.Mock, *audioio.MockPlayer, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	provider := tts.NewMock()
	player := audioio.NewMockPlayer()
	opts = append([]speech.Option{speech.WithClock(clk), speech.WithLogger(log.Discard())}, opts...)
	out := speech.NewOutput(provider, player, opts...)
	return out, provider, player, clk
}

func TestSpeakAsync_Dedupe(t *testing.T) {
	out, _, _, clk := newOutput(t)

	require.NoError(t, out.SpeakAsync("person ahead", time.Second))
	assert.ErrorIs(t, out.SpeakAsync("person ahead", time.Second), speech.ErrDuplicate)

	// A different phrase is always accepted
	require.NoError(t, out.SpeakAsync("chair left", time.Second))

	// The same phrase again after a different one is not a duplicate
	require.NoError(t, out.SpeakAsync("person ahead", time.Second))

	clk.Advance(time.Second)
	require.NoError(t, out.SpeakAsync("person ahead", time.Second))
	assert.Equal(t, 4, out.Pending())
}

func TestSpeakAsync_EmptyIgnored(t *testing.T) {
	out, _, _, _ := newOutput(t)
	assert.NoError(t, out.SpeakAsync("", time.Second))
	assert.Equal(t, 0, out.Pending())
}

func TestSpeakAsync_DropsWhenFull(t *testing.T) {
	out, _, _, _ := newOutput(t, speech.WithQueueSize(2))

	require.NoError(t, out.SpeakAsync("one", 0))
	require.NoError(t, out.SpeakAsync("two", 0))
	assert.ErrorIs(t, out.SpeakAsync("three", 0), speech.ErrQueueFull)
	assert.Equal(t, 2, out.Pending())
}

func TestOutput_DefaultQueueSize(t *testing.T) {
	out, _, _, _ := newOutput(t)
	for i := 0; i < speech.DefaultQueueSize; i++ {
		require.NoError(t, out.SpeakAsync(string(rune('a'+i)), 0))
	}
	assert.ErrorIs(t, out.SpeakAsync("overflow", 0), speech.ErrQueueFull)
}

func TestOutput_WorkerSpeaksInOrder(t *testing.T) {
	out, provider, player, _ := newOutput(t)
	out.Start()
	defer out.Stop()

	require.NoError(t, out.SpeakAsync("Pathfinder ready", time.Second))
	require.NoError(t, out.SpeakAsync("person ahead", time.Second))

	require.Eventually(t, func() bool {
		return len(player.Played()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"Pathfinder ready", "person ahead"}, provider.Spoken())
}

func TestOutput_SynthesisFailureDoesNotStopWorker(t *testing.T) {
	out, provider, player, _ := newOutput(t)

	var mu sync.Mutex
	calls := 0
	provider.SynthesizeFunc = func(ctx context.Context, req tts.Request) (*tts.AudioResult, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, errors.New("engine unavailable")
		}
		return &tts.AudioResult{Audio: make([]byte, 320), Format: tts.PCM16Mono(16000)}, nil
	}

	out.Start()
	defer out.Stop()

	require.NoError(t, out.SpeakAsync("first", 0))
	require.NoError(t, out.SpeakAsync("second", 0))

	require.Eventually(t, func() bool {
		return len(player.Played()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOutput_StopJoinsWorker(t *testing.T) {
	out, _, player, _ := newOutput(t)
	player.WithRealtime()
	out.Start()

	// A long phrase keeps the worker busy in playback
	require.NoError(t, out.SpeakAsync("this phrase is long enough to take a while to play back", 0))
	require.Eventually(t, func() bool {
		return len(player.Played()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		out.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not interrupt playback and join the worker")
	}

	assert.ErrorIs(t, out.SpeakAsync("after stop", 0), speech.ErrStopped)
	out.Stop() // idempotent
}

func TestOutput_RateAndVolume(t *testing.T) {
	out, _, _, _ := newOutput(t)

	assert.Equal(t, speech.DefaultRate, out.Rate())
	assert.Equal(t, 210, out.AdjustRate(10))
	for i := 0; i < 20; i++ {
		out.AdjustRate(10)
	}
	assert.Equal(t, speech.MaxRate, out.Rate())
	for i := 0; i < 40; i++ {
		out.AdjustRate(-10)
	}
	assert.Equal(t, speech.MinRate, out.Rate())

	assert.InDelta(t, 1.0, out.AdjustVolume(0.05), 1e-9)
	assert.InDelta(t, 0.95, out.AdjustVolume(-0.05), 1e-9)
	for i := 0; i < 30; i++ {
		out.AdjustVolume(-0.05)
	}
	assert.Equal(t, 0.0, out.Volume())
}

func TestOutput_NextVoice(t *testing.T) {
	out, _, _, _ := newOutput(t)

	assert.Equal(t, "mock-a", out.Voice())
	name, ok := out.NextVoice()
	require.True(t, ok)
	assert.Equal(t, "mock-b", name)
	name, _ = out.NextVoice()
	assert.Equal(t, "mock-a", name, "voices wrap around")
}

func TestOutput_VoiceOptions(t *testing.T) {
	out, _, _, _ := newOutput(t, speech.WithVoice("mock-b"))
	assert.Equal(t, "mock-b", out.Voice())

	out, _, _, _ = newOutput(t, speech.WithVoiceIndex(7))
	assert.Equal(t, "mock-a", out.Voice(), "out of range index is ignored")
}

func TestShape(t *testing.T) {
	samples := make([]int16, 1000)
	for i := range samples {
		samples[i] = 1000
	}

	same := speech.Shape(samples, 16000, speech.DefaultRate, 1)
	assert.Len(t, same, 1000)

	faster := speech.Shape(samples, 16000, 250, 1)
	assert.Less(t, len(faster), 1000)

	quiet := speech.Shape(samples, 16000, speech.DefaultRate, 0.5)
	assert.Equal(t, int16(500), quiet[10])
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want speech.Command
		ok   bool
	}{
		{"Left", speech.CommandLeft, true},
		{"turn right please", speech.CommandRight, true},
		{"STOP!", speech.CommandStop, true},
		{"can you repeat that", speech.CommandRepeat, true},
		{"help, stop", speech.CommandHelp, true},
		{"helpful advice", "", false},
		{"", "", false},
		{"straight on", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := speech.ParseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMockListener(t *testing.T) {
	l := speech.NewMockListener(speech.CommandHelp)

	cmd, ok := l.ListenOnce(context.Background(), 800*time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, speech.CommandHelp, cmd)

	_, ok = l.ListenOnce(context.Background(), 800*time.Millisecond)
	assert.False(t, ok)
	assert.Equal(t, 2, l.Calls())
}

func TestWhisperListener_SilenceSkipsTranscription(t *testing.T) {
	rec := audioio.NewMockRecorder(audioio.DefaultConfig())
	// An unroutable base URL fails the test if a request is attempted
	l := speech.NewWhisperListener("sk-test", "http://127.0.0.1:1/v1", "", rec, log.Discard())

	_, ok := l.ListenOnce(context.Background(), 100*time.Millisecond)
	assert.False(t, ok)
	assert.Equal(t, 1, rec.Records())
}
