package mqttc

import (
	"context"
	"errors"
	"sync"
)

// Message is a payload recorded by Memory.
type Message struct {
	Topic   string
	QoS     byte
	Payload []byte
}

// Memory is an in-process broker for tests and offline runs. Publish
// delivers synchronously to handlers subscribed to the exact topic.
type Memory struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	messages []Message
	err      error
}

// NewMemory creates an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{handlers: make(map[string][]Handler)}
}

// FailWith makes every following Publish return err. nil restores success.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Publish records the message and dispatches it.
func (m *Memory) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}
	m.messages = append(m.messages, Message{Topic: topic, QoS: qos, Payload: append([]byte(nil), payload...)})
	hs := append([]Handler(nil), m.handlers[topic]...)
	m.mu.Unlock()

	for _, h := range hs {
		h(topic, payload)
	}
	return nil
}

// Subscribe registers h for the exact topic.
func (m *Memory) Subscribe(topic string, _ byte, h Handler) error {
	if h == nil {
		return errors.New("mqttc: nil handler")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = append(m.handlers[topic], h)
	return nil
}

// Messages returns everything published so far.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
