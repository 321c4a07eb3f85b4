package input

import (
	"log/slog"
	"strings"

	"github.com/teslashibe/go-pathfinder/internal/mqttc"
)

// Button payloads published by the wearable's hardware button.
const (
	ButtonPress = "press"
	ButtonHold  = "hold"
)

// SubscribeButton forwards hardware button messages on topic to the bus.
// "press" counts toward the SOS gesture and "hold" triggers an alert
// directly. Other payloads are ignored.
func SubscribeButton(sub mqttc.Subscriber, topic string, bus *Bus, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "input.button", "topic", topic)

	return sub.Subscribe(topic, 1, func(_ string, payload []byte) {
		switch strings.ToLower(strings.TrimSpace(string(payload))) {
		case ButtonPress:
			bus.Publish(Event{Name: SOSPress, Source: "button"})
		case ButtonHold:
			bus.Publish(Event{Name: SOSTrigger, Message: ManualHelpMessage, Source: "button"})
		default:
			logger.Debug("ignoring button payload", "payload", string(payload))
		}
	})
}
