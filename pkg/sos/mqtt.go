package sos

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/mqttc"
)

// MQTT publishes the alert to a caregiver topic with QoS 1.
type MQTT struct {
	pub    mqttc.Publisher
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

// NewMQTT creates an MQTT channel.
func NewMQTT(pub mqttc.Publisher, topic string, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTT{pub: pub, topic: topic, logger: logger.With("component", "sos.mqtt"), now: time.Now}
}

type alertMessage struct {
	Body string `json:"body"`
	TS   int64  `json:"ts"`
}

// Name returns "mqtt".
func (m *MQTT) Name() string { return "mqtt" }

// Send implements Channel.
func (m *MQTT) Send(ctx context.Context, body string) bool {
	payload, err := json.Marshal(alertMessage{Body: body, TS: m.now().UnixMilli()})
	if err != nil {
		return false
	}
	if err := m.pub.Publish(ctx, m.topic, 1, payload); err != nil {
		m.logger.Warn("⚠️ MQTT alert error", "error", err)
		return false
	}
	return true
}
