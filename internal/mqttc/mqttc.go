// Package mqttc wraps the paho MQTT client shared by the haptic band
// transport, the hardware button input and the caregiver alert channel.
package mqttc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler receives a message payload.
type Handler func(topic string, payload []byte)

// Publisher publishes a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error
}

// Subscriber delivers messages on a topic to a handler.
type Subscriber interface {
	Subscribe(topic string, qos byte, h Handler) error
}

// Config holds MQTT connection configuration.
type Config struct {
	Broker         string // e.g. "tcp://localhost:1883"
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Client manages one broker connection.
type Client struct {
	client mqtt.Client
	logger *slog.Logger
}

// Connect dials the broker. Auto-reconnect is enabled so a dropped
// connection recovers without the caller noticing.
func Connect(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mqttc", "broker", cfg.Broker)

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	return &Client{client: client, logger: logger}, nil
}

// Publish sends payload and waits for the broker acknowledgement or ctx.
func (c *Client) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	token := c.client.Publish(topic, qos, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
}

// Subscribe registers h for topic.
func (c *Client) Subscribe(topic string, qos byte, h Handler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	c.logger.Info("mqtt subscribed", "topic", topic)
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(250)
	return nil
}
