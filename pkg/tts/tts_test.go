package tts_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teslashibe/go-pathfinder/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, tts.Request{Text: "Hello world"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if result.Format.SampleRate != tts.MockSampleRate {
			t.Errorf("expected %d sample rate, got %d", tts.MockSampleRate, result.Format.SampleRate)
		}
		if result.Duration != 220*time.Millisecond {
			t.Errorf("expected 220ms, got %v", result.Duration)
		}
	})

	t.Run("Empty text is rejected", func(t *testing.T) {
		_, err := mock.Synthesize(ctx, tts.Request{})
		if !errors.Is(err, tts.ErrEmptyText) {
			t.Errorf("expected ErrEmptyText, got %v", err)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		if mock.CallCount("Synthesize") != 2 {
			t.Errorf("expected 2 Synthesize calls, got %d", mock.CallCount("Synthesize"))
		}
		spoken := mock.Spoken()
		if len(spoken) != 2 || spoken[0] != "Hello world" {
			t.Errorf("Spoken() = %v", spoken)
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.WithLatency(tts.NewMock(), 200*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mock.Synthesize(ctx, tts.Request{Text: "slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("first success wins", func(t *testing.T) {
		first := tts.NewMock()
		second := tts.NewMock()
		chain, err := tts.NewChain(nil, first, second)
		if err != nil {
			t.Fatal(err)
		}

		if _, err := chain.Synthesize(ctx, tts.Request{Text: "hi"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second.CallCount("Synthesize") != 0 {
			t.Error("second provider should not be called")
		}
	})

	t.Run("falls back on failure", func(t *testing.T) {
		failing := tts.WithError(errors.New("offline"))
		backup := tts.NewMock()
		chain, _ := tts.NewChain(nil, failing, backup)

		if _, err := chain.Synthesize(ctx, tts.Request{Text: "hi", Voice: "mock-a"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backup.CallCount("Synthesize") != 1 {
			t.Error("backup provider should be called once")
		}
	})

	t.Run("unknown voice is dropped per provider", func(t *testing.T) {
		first := tts.NewMock()
		first.VoiceList = []string{"only-this"}
		chain, _ := tts.NewChain(nil, first)

		chain.Synthesize(ctx, tts.Request{Text: "hi", Voice: "mock-b"})
		if got := first.Calls()[0].Voice; got != "" {
			t.Errorf("voice passed = %q, want empty", got)
		}
	})

	t.Run("all fail returns ChainError", func(t *testing.T) {
		errA := errors.New("a down")
		errB := errors.New("b down")
		chain, _ := tts.NewChain(nil, tts.WithError(errA), tts.WithError(errB))

		_, err := chain.Synthesize(ctx, tts.Request{Text: "hi"})
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) {
			t.Fatalf("expected ChainError, got %v", err)
		}
		if len(chainErr.Errors) != 2 {
			t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
		}
		if !errors.Is(err, errA) || !errors.Is(err, errB) {
			t.Error("ChainError should unwrap to every provider error")
		}
	})

	t.Run("failed provider cools down", func(t *testing.T) {
		flaky := tts.WithError(errors.New("offline"))
		backup := tts.NewMock()
		chain, _ := tts.NewChain(nil, flaky, backup)

		for range 3 {
			if _, err := chain.Synthesize(ctx, tts.Request{Text: "hi"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if got := flaky.CallCount("Synthesize"); got != 1 {
			t.Errorf("failed provider called %d times, want 1", got)
		}
		if got := backup.CallCount("Synthesize"); got != 3 {
			t.Errorf("backup called %d times, want 3", got)
		}

		chain.SetCooldown(0)
		chain.Synthesize(ctx, tts.Request{Text: "hi"})
		if got := flaky.CallCount("Synthesize"); got != 2 {
			t.Errorf("without cooldown the first provider is retried, calls = %d", got)
		}
	})

	t.Run("empty chain", func(t *testing.T) {
		if _, err := tts.NewChain(nil); !errors.Is(err, tts.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})
}

func TestProviderError(t *testing.T) {
	inner := errors.New("boom")
	err := tts.WrapError("edge", inner)
	if !errors.Is(err, inner) {
		t.Error("ProviderError should unwrap")
	}
	if err.Error() != "tts [edge]: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if tts.WrapError("edge", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}
}

func TestDownmixStereo(t *testing.T) {
	stereo := make([]byte, 8)
	for i, v := range []int16{1000, 3000, -2000, -4000} {
		binary.LittleEndian.PutUint16(stereo[2*i:], uint16(v))
	}

	mono := tts.DownmixStereo(stereo)
	if len(mono) != 4 {
		t.Fatalf("len = %d, want 4", len(mono))
	}
	if got := int16(binary.LittleEndian.Uint16(mono[0:])); got != 2000 {
		t.Errorf("frame 0 = %d, want 2000", got)
	}
	if got := int16(binary.LittleEndian.Uint16(mono[2:])); got != -3000 {
		t.Errorf("frame 1 = %d, want -3000", got)
	}
}

func TestEdge(t *testing.T) {
	ctx := context.Background()

	t.Run("Voice and timeout reach the stream", func(t *testing.T) {
		edge, err := tts.NewEdge(tts.WithVoice("en-GB-SoniaNeural"), tts.WithTimeout(3*time.Second))
		if err != nil {
			t.Fatalf("NewEdge: %v", err)
		}
		var gotText, gotVoice string
		var gotTimeout time.Duration
		tts.SetEdgeStream(edge, func(text, voice string, timeout time.Duration) ([]byte, error) {
			gotText, gotVoice, gotTimeout = text, voice, timeout
			return nil, nil
		})

		_, err = edge.Synthesize(ctx, tts.Request{Text: "stairs ahead"})
		if !errors.Is(err, tts.ErrEmptyAudio) {
			t.Errorf("expected ErrEmptyAudio, got %v", err)
		}
		if gotText != "stairs ahead" || gotVoice != "en-GB-SoniaNeural" || gotTimeout != 3*time.Second {
			t.Errorf("stream got (%q, %q, %v)", gotText, gotVoice, gotTimeout)
		}

		_, _ = edge.Synthesize(ctx, tts.Request{Text: "door", Voice: "en-US-GuyNeural"})
		if gotVoice != "en-US-GuyNeural" {
			t.Errorf("request voice not used, got %q", gotVoice)
		}
	})

	t.Run("Stream error is wrapped", func(t *testing.T) {
		edge, _ := tts.NewEdge()
		boom := errors.New("websocket closed")
		tts.SetEdgeStream(edge, func(string, string, time.Duration) ([]byte, error) {
			return nil, boom
		})

		_, err := edge.Synthesize(ctx, tts.Request{Text: "hello"})
		if !errors.Is(err, boom) {
			t.Errorf("expected stream error, got %v", err)
		}
		var pe *tts.ProviderError
		if !errors.As(err, &pe) || pe.Provider != "edge" {
			t.Errorf("expected edge ProviderError, got %v", err)
		}
	})

	t.Run("Invalid MP3 is an error", func(t *testing.T) {
		edge, _ := tts.NewEdge()
		tts.SetEdgeStream(edge, func(string, string, time.Duration) ([]byte, error) {
			return []byte("not an mp3 stream"), nil
		})
		if _, err := edge.Synthesize(ctx, tts.Request{Text: "hello"}); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("Timeout abandons a stuck stream", func(t *testing.T) {
		edge, _ := tts.NewEdge(tts.WithTimeout(20 * time.Millisecond))
		release := make(chan struct{})
		defer close(release)
		tts.SetEdgeStream(edge, func(string, string, time.Duration) ([]byte, error) {
			<-release
			return nil, nil
		})

		_, err := edge.Synthesize(ctx, tts.Request{Text: "hello"})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("Empty text is rejected", func(t *testing.T) {
		edge, _ := tts.NewEdge()
		if _, err := edge.Synthesize(ctx, tts.Request{}); !errors.Is(err, tts.ErrEmptyText) {
			t.Errorf("expected ErrEmptyText, got %v", err)
		}
	})
}

func TestOpenAI(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key","code":"invalid_api_key"}}`))
			return
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write(make([]byte, 4800))
	}))
	defer srv.Close()

	t.Run("requires key", func(t *testing.T) {
		if _, err := tts.NewOpenAI(); !errors.Is(err, tts.ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("synthesizes pcm", func(t *testing.T) {
		p, err := tts.NewOpenAI(tts.WithAPIKey("sk-test"), tts.WithBaseURL(srv.URL))
		if err != nil {
			t.Fatal(err)
		}
		res, err := p.Synthesize(context.Background(), tts.Request{Text: "stairs ahead", Voice: tts.VoiceOnyx})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Format.SampleRate != 24000 || res.Duration != 100*time.Millisecond {
			t.Errorf("result = %+v", res.Format)
		}
		if gotBody["response_format"] != "pcm" || gotBody["voice"] != tts.VoiceOnyx {
			t.Errorf("request body = %v", gotBody)
		}
	})

	t.Run("api error", func(t *testing.T) {
		p, _ := tts.NewOpenAI(tts.WithAPIKey("wrong"), tts.WithBaseURL(srv.URL))
		_, err := p.Synthesize(context.Background(), tts.Request{Text: "x"})
		var apiErr *tts.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.StatusCode != 401 || apiErr.Code != "invalid_api_key" || apiErr.IsRetryable() {
			t.Errorf("apiErr = %+v", apiErr)
		}
	})
}
