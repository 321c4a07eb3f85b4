package haptics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/mqttc"
	"github.com/teslashibe/go-pathfinder/internal/serialport"
)

// Transport delivers a pattern to the motors.
type Transport interface {
	Send(ctx context.Context, p Pattern) error
	Close() error
}

// MQTTTransport publishes patterns to a wearable band as JSON:
// {"l":0,"c":100,"r":0,"ts":1700000000000}.
type MQTTTransport struct {
	pub   mqttc.Publisher
	topic string
	now   func() time.Time
}

// NewMQTTTransport creates a transport publishing on topic.
func NewMQTTTransport(pub mqttc.Publisher, topic string) *MQTTTransport {
	return &MQTTTransport{pub: pub, topic: topic, now: time.Now}
}

type bandMessage struct {
	Pattern
	TS int64 `json:"ts"`
}

// Send publishes the pattern with QoS 0; a lost update is replaced by the next.
func (t *MQTTTransport) Send(ctx context.Context, p Pattern) error {
	payload, err := json.Marshal(bandMessage{Pattern: p, TS: t.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal pattern: %w", err)
	}
	return t.pub.Publish(ctx, t.topic, 0, payload)
}

// Close is a no-op; the shared MQTT client is closed by its owner.
func (t *MQTTTransport) Close() error { return nil }

// SerialTransport writes "H l c r\n" lines to a motor microcontroller.
type SerialTransport struct {
	port serialport.Port
}

// OpenSerialTransport opens the microcontroller port.
func OpenSerialTransport(path string, opts serialport.Options) (*SerialTransport, error) {
	port, err := serialport.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSerialTransport(port), nil
}

// NewSerialTransport wraps an open port.
func NewSerialTransport(port serialport.Port) *SerialTransport {
	return &SerialTransport{port: port}
}

// Send writes one pattern line.
func (t *SerialTransport) Send(_ context.Context, p Pattern) error {
	line := fmt.Sprintf("H %d %d %d\n", p.Left, p.Center, p.Right)
	if _, err := t.port.Write([]byte(line)); err != nil {
		return fmt.Errorf("write haptic line: %w", err)
	}
	return nil
}

// Close turns the motors off and closes the port.
func (t *SerialTransport) Close() error {
	_, _ = t.port.Write([]byte("H 0 0 0\n"))
	return t.port.Close()
}

// LogTransport logs patterns at debug level. Used on desktops without motors.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a logging transport.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger.With("component", "haptics.log")}
}

// Send logs the pattern.
func (t *LogTransport) Send(_ context.Context, p Pattern) error {
	t.logger.Debug("haptic", "left", p.Left, "center", p.Center, "right", p.Right)
	return nil
}

// Close is a no-op.
func (t *LogTransport) Close() error { return nil }
