package mqttc

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_PublishSubscribe(t *testing.T) {
	m := NewMemory()

	var got []string
	if err := m.Subscribe("pathfinder/button", 1, func(topic string, payload []byte) {
		got = append(got, topic+"="+string(payload))
	}); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := m.Publish(ctx, "pathfinder/button", 1, []byte("press")); err != nil {
		t.Fatal(err)
	}
	if err := m.Publish(ctx, "pathfinder/other", 0, []byte("ignored")); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || got[0] != "pathfinder/button=press" {
		t.Errorf("handler calls = %v", got)
	}
	if n := len(m.Messages()); n != 2 {
		t.Errorf("Messages() = %d, want 2", n)
	}
}

func TestMemory_FailWith(t *testing.T) {
	m := NewMemory()
	boom := errors.New("broker down")
	m.FailWith(boom)

	if err := m.Publish(context.Background(), "t", 0, nil); !errors.Is(err, boom) {
		t.Errorf("Publish() = %v, want %v", err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.FailWith(nil)
	if err := m.Publish(ctx, "t", 0, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish(cancelled) = %v", err)
	}
}
