// Package config loads pathfinder configuration.
//
// Values are resolved in order: built-in defaults, an optional YAML file,
// a .env file in the working directory, and finally process environment
// variables. Flag parsing happens in cmd/pathfinder; this package is data only.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the YAML config path.
const EnvConfigPath = "PATHFINDER_CONFIG"

// Config holds all configuration for the pathfinder device.
type Config struct {
	// Debug enables verbose logging and the debug overlay window.
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`

	Loop      LoopConfig      `yaml:"loop"`
	Vision    VisionConfig    `yaml:"vision"`
	Range     RangeConfig     `yaml:"range"`
	GPS       GPSConfig       `yaml:"gps"`
	Haptics   HapticsConfig   `yaml:"haptics"`
	Speech    SpeechConfig    `yaml:"speech"`
	Narration NarrationConfig `yaml:"narration"`
	SOS       SOSConfig       `yaml:"sos"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// LoopConfig controls the control loop cadences.
type LoopConfig struct {
	RateHz         float64       `yaml:"rate_hz"`         // target cycle rate
	DetectEvery    int           `yaml:"detect_every"`    // run detection every N cycles
	HapticHz       float64       `yaml:"haptic_hz"`       // haptic update rate
	ListenEvery    int           `yaml:"listen_every"`    // voice listen every N cycles, 0 disables
	ListenTimeout  time.Duration `yaml:"listen_timeout"`  // bound on a single listen
	DangerDistance float64       `yaml:"danger_distance"` // meters
}

// VisionConfig configures the camera and detector.
type VisionConfig struct {
	Camera        int     `yaml:"camera"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	Model         string  `yaml:"model"`
	Confidence    float64 `yaml:"confidence"`
	ImageSize     int     `yaml:"image_size"`
	ObstaclesOnly bool    `yaml:"obstacles_only"`
	Window        bool    `yaml:"window"`
}

// RangeConfig selects the range sensor variant.
type RangeConfig struct {
	Mode    string `yaml:"mode"` // "simulated" or "serial"
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
	Samples int    `yaml:"samples"`
}

// GPSConfig configures the NMEA receiver. An empty port disables it.
type GPSConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// HapticsConfig selects where vibration patterns go.
type HapticsConfig struct {
	Transport string  `yaml:"transport"` // "log", "mqtt" or "serial"
	Topic     string  `yaml:"topic"`
	Port      string  `yaml:"port"`
	Baud      int     `yaml:"baud"`
	MaxRange  float64 `yaml:"max_range"`
}

// SpeechConfig configures synthesis and recognition.
type SpeechConfig struct {
	Engine     string  `yaml:"engine"` // "edge", "openai" or "mock"
	Voice      string  `yaml:"voice"`
	VoiceIndex int     `yaml:"voice_index"`
	Rate       int     `yaml:"rate"`   // words per minute, 0 uses the engine default
	Volume     float64 `yaml:"volume"` // 0.0-1.0
	QueueSize  int     `yaml:"queue_size"`
	Player     string  `yaml:"player"` // audio backend: "exec" or "mock"

	// Listen enables the voice command recognizer.
	Listen   bool   `yaml:"listen"`
	STTModel string `yaml:"stt_model"`

	OpenAIKey string `yaml:"-"`
}

// NarrationConfig configures the optional phrase generator.
type NarrationConfig struct {
	Provider      string        `yaml:"provider"` // "", "gemini", "openai" or "none"
	Async         bool          `yaml:"async"`
	SyncBudget    time.Duration `yaml:"sync_budget"`
	AsyncBudget   time.Duration `yaml:"async_budget"`
	GeminiModel   string        `yaml:"gemini_model"`
	OpenAIModel   string        `yaml:"openai_model"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`

	GeminiKey string `yaml:"-"`
	OpenAIKey string `yaml:"-"`
}

// SOSConfig configures the emergency alert path.
type SOSConfig struct {
	Enabled     bool          `yaml:"enabled"`
	PressWindow time.Duration `yaml:"press_window"`
	PressCount  int           `yaml:"press_count"`
	Retries     int           `yaml:"retries"`
	Backoff     time.Duration `yaml:"backoff"`
	Topic       string        `yaml:"topic"`

	TwilioSID          string `yaml:"-"`
	TwilioAuth         string `yaml:"-"`
	TwilioFrom         string `yaml:"-"`
	TwilioWhatsAppFrom string `yaml:"-"`

	Contact         string `yaml:"contact"`
	ContactWhatsApp string `yaml:"contact_whatsapp"`
	Email           string `yaml:"email"`

	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	SMTPUser string `yaml:"-"`
	SMTPPass string `yaml:"-"`

	GmailCredentials string `yaml:"gmail_credentials"`
	GmailToken       string `yaml:"gmail_token"`
}

// MQTTConfig configures the broker shared by haptics, buttons and alerts.
// An empty broker disables every MQTT feature.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"-"`
	ButtonTopic string `yaml:"button_topic"`
}

// DashboardConfig configures the status dashboard server.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Loop: LoopConfig{
			RateHz:         15,
			DetectEvery:    3,
			HapticHz:       10,
			ListenEvery:    30,
			ListenTimeout:  800 * time.Millisecond,
			DangerDistance: 1.5,
		},
		Vision: VisionConfig{
			Width:      640,
			Height:     480,
			Model:      "yolov8n.onnx",
			Confidence: 0.35,
			ImageSize:  416,
		},
		Range: RangeConfig{
			Mode:    "simulated",
			Baud:    9600,
			Samples: 5,
		},
		GPS: GPSConfig{
			Port: "/dev/ttyUSB0",
			Baud: 9600,
		},
		Haptics: HapticsConfig{
			Transport: "log",
			Topic:     "pathfinder/haptics",
			Baud:      115200,
			MaxRange:  3.0,
		},
		Speech: SpeechConfig{
			Engine:    "edge",
			Volume:    1.0,
			QueueSize: 16,
			Player:    "exec",
			STTModel:  "whisper-1",
		},
		Narration: NarrationConfig{
			SyncBudget:  250 * time.Millisecond,
			AsyncBudget: 2500 * time.Millisecond,
			GeminiModel: "gemini-1.5-flash",
			OpenAIModel: "gpt-4o-mini",
		},
		SOS: SOSConfig{
			Enabled:     true,
			PressWindow: 1500 * time.Millisecond,
			PressCount:  3,
			Retries:     3,
			Backoff:     500 * time.Millisecond,
			Topic:       "pathfinder/sos",
			SMTPHost:    "smtp.gmail.com",
			SMTPPort:    465,
		},
		MQTT: MQTTConfig{
			ClientID:    "pathfinder",
			ButtonTopic: "pathfinder/button",
		},
		Dashboard: DashboardConfig{
			Addr: ":8080",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (if non-empty
// or named by PATHFINDER_CONFIG), .env and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	// A missing .env is normal on a deployed device
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.LoadEnv()
	return cfg, nil
}

// LoadFile merges the YAML file at path over c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadEnv applies environment overrides. Secrets only ever come from here.
func (c *Config) LoadEnv() {
	c.Debug = envBool("PATHFINDER_DEBUG", c.Debug)
	c.LogLevel = envString("LOG_LEVEL", c.LogLevel)

	c.Loop.DangerDistance = envFloat("DANGER_DISTANCE_M", c.Loop.DangerDistance)
	c.Loop.RateHz = envFloat("LOOP_RATE_HZ", c.Loop.RateHz)

	c.Vision.Model = envString("VISION_MODEL", c.Vision.Model)
	c.Vision.Camera = envInt("CAMERA_INDEX", c.Vision.Camera)

	c.Range.Mode = envString("RANGE_MODE", c.Range.Mode)
	c.Range.Port = envString("RANGE_SERIAL_PORT", c.Range.Port)

	c.GPS.Port = envString("GPS_SERIAL_PORT", c.GPS.Port)

	c.Haptics.Transport = envString("HAPTICS_TRANSPORT", c.Haptics.Transport)
	c.Haptics.Port = envString("HAPTICS_SERIAL_PORT", c.Haptics.Port)

	c.Speech.Engine = envString("TTS_ENGINE", c.Speech.Engine)
	c.Speech.Voice = envString("TTS_VOICE", c.Speech.Voice)
	c.Speech.VoiceIndex = envInt("TTS_VOICE_INDEX", c.Speech.VoiceIndex)
	c.Speech.STTModel = envString("STT_MODEL", c.Speech.STTModel)
	c.Speech.OpenAIKey = envString("OPENAI_API_KEY", c.Speech.OpenAIKey)

	c.Narration.GeminiKey = envString("GEMINI_API_KEY", c.Narration.GeminiKey)
	c.Narration.OpenAIKey = envString("OPENAI_API_KEY", c.Narration.OpenAIKey)
	c.Narration.OpenAIBaseURL = envString("OPENAI_BASE_URL", c.Narration.OpenAIBaseURL)
	c.Narration.Provider = envString("NARRATION_PROVIDER", c.Narration.Provider)

	c.SOS.TwilioSID = envString("TWILIO_SID", c.SOS.TwilioSID)
	c.SOS.TwilioAuth = envString("TWILIO_AUTH", c.SOS.TwilioAuth)
	c.SOS.TwilioFrom = envString("TWILIO_FROM", c.SOS.TwilioFrom)
	c.SOS.TwilioWhatsAppFrom = envString("TWILIO_WHATSAPP_FROM", c.SOS.TwilioWhatsAppFrom)
	c.SOS.Contact = envString("EMERGENCY_CONTACT", c.SOS.Contact)
	c.SOS.ContactWhatsApp = envString("EMERGENCY_CONTACT_WHATSAPP", c.SOS.ContactWhatsApp)
	c.SOS.Email = envString("EMERGENCY_EMAIL", c.SOS.Email)
	c.SOS.SMTPHost = envString("SMTP_HOST", c.SOS.SMTPHost)
	c.SOS.SMTPPort = envInt("SMTP_PORT", c.SOS.SMTPPort)
	c.SOS.SMTPUser = envString("SMTP_USER", c.SOS.SMTPUser)
	c.SOS.SMTPPass = envString("SMTP_PASS", c.SOS.SMTPPass)
	c.SOS.GmailCredentials = envString("GMAIL_CREDENTIALS_FILE", c.SOS.GmailCredentials)
	c.SOS.GmailToken = envString("GMAIL_TOKEN_FILE", c.SOS.GmailToken)

	c.MQTT.Broker = envString("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = envString("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = envString("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = envString("MQTT_PASSWORD", c.MQTT.Password)

	c.Dashboard.Addr = envString("DASHBOARD_ADDR", c.Dashboard.Addr)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Loop.RateHz <= 0 {
		return &Error{Field: "loop.rate_hz", Message: "loop rate must be positive"}
	}
	if c.Loop.DetectEvery < 1 {
		return &Error{Field: "loop.detect_every", Message: "detect_every must be at least 1"}
	}
	if c.Loop.HapticHz <= 0 {
		return &Error{Field: "loop.haptic_hz", Message: "haptic rate must be positive"}
	}
	if c.Loop.DangerDistance <= 0 {
		return &Error{Field: "loop.danger_distance", Message: "DANGER_DISTANCE_M must be positive"}
	}
	if c.Vision.Confidence < 0 || c.Vision.Confidence > 1 {
		return &Error{Field: "vision.confidence", Message: "confidence must be within [0,1]"}
	}
	switch c.Range.Mode {
	case "simulated":
	case "serial":
		if c.Range.Port == "" {
			return &Error{Field: "range.port", Message: "RANGE_SERIAL_PORT is required for the serial range sensor"}
		}
	default:
		return &Error{Field: "range.mode", Message: fmt.Sprintf("unknown range mode %q", c.Range.Mode)}
	}
	switch c.Haptics.Transport {
	case "log":
	case "mqtt":
		if c.MQTT.Broker == "" {
			return &Error{Field: "mqtt.broker", Message: "MQTT_BROKER is required for the mqtt haptic transport"}
		}
	case "serial":
		if c.Haptics.Port == "" {
			return &Error{Field: "haptics.port", Message: "HAPTICS_SERIAL_PORT is required for the serial haptic transport"}
		}
	default:
		return &Error{Field: "haptics.transport", Message: fmt.Sprintf("unknown haptic transport %q", c.Haptics.Transport)}
	}
	switch c.Speech.Engine {
	case "edge", "mock":
	case "openai":
		if c.Speech.OpenAIKey == "" {
			return &Error{Field: "speech.engine", Message: "OPENAI_API_KEY is required for the openai speech engine"}
		}
	default:
		return &Error{Field: "speech.engine", Message: fmt.Sprintf("unknown speech engine %q", c.Speech.Engine)}
	}
	if c.Speech.QueueSize < 1 {
		return &Error{Field: "speech.queue_size", Message: "queue size must be at least 1"}
	}
	switch c.Narration.Provider {
	case "", "none":
	case "gemini":
		if c.Narration.GeminiKey == "" {
			return &Error{Field: "narration.provider", Message: "GEMINI_API_KEY is required for gemini narration"}
		}
	case "openai":
		if c.Narration.OpenAIKey == "" {
			return &Error{Field: "narration.provider", Message: "OPENAI_API_KEY is required for openai narration"}
		}
	default:
		return &Error{Field: "narration.provider", Message: fmt.Sprintf("unknown narration provider %q", c.Narration.Provider)}
	}
	if c.SOS.PressCount < 1 {
		return &Error{Field: "sos.press_count", Message: "press_count must be at least 1"}
	}
	if c.SOS.Retries < 1 {
		return &Error{Field: "sos.retries", Message: "retries must be at least 1"}
	}
	return nil
}

// Period returns the control loop tick period.
func (c LoopConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.RateHz)
}

// HapticPeriod returns the haptic gate period.
func (c LoopConfig) HapticPeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.HapticHz)
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
