// sos-test sends one SOS alert through every configured channel and prints
// which one delivered it. Use it to check credentials before going out.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-pathfinder/internal/clock"
	"github.com/teslashibe/go-pathfinder/internal/config"
	"github.com/teslashibe/go-pathfinder/internal/httpc"
	plog "github.com/teslashibe/go-pathfinder/internal/log"
	"github.com/teslashibe/go-pathfinder/internal/mqttc"
	"github.com/teslashibe/go-pathfinder/pkg/location"
	"github.com/teslashibe/go-pathfinder/pkg/sos"
)

// printSpeaker prints announcements instead of speaking them.
type printSpeaker struct{}

func (printSpeaker) SpeakAsync(text string, _ time.Duration) error {
	fmt.Printf("🔊 %s\n", text)
	return nil
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	message := flag.String("message", "Test alert, please ignore", "Alert message")
	lat := flag.Float64("lat", 0, "Latitude to report (0 uses the GPS if configured)")
	lon := flag.Float64("lon", 0, "Longitude to report")
	dryRun := flag.Bool("dry-run", false, "List channels without sending")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	plog.Init(cfg.LogLevel)
	logger := plog.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var pub mqttc.Publisher
	if cfg.MQTT.Broker != "" {
		client, err := mqttc.Connect(mqttc.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID + "-sos-test",
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, logger)
		if err != nil {
			fmt.Printf("⚠️  MQTT: %v\n", err)
		} else {
			defer client.Close()
			pub = client
		}
	}

	sc := cfg.SOS
	channels := sos.BuildChannels(ctx, sos.Credentials{
		TwilioSID:          sc.TwilioSID,
		TwilioAuth:         sc.TwilioAuth,
		TwilioFrom:         sc.TwilioFrom,
		TwilioWhatsAppFrom: sc.TwilioWhatsAppFrom,
		Contact:            sc.Contact,
		ContactWhatsApp:    sc.ContactWhatsApp,
		Email:              sc.Email,
		SMTPHost:           sc.SMTPHost,
		SMTPPort:           sc.SMTPPort,
		SMTPUser:           sc.SMTPUser,
		SMTPPass:           sc.SMTPPass,
		GmailCredentials:   sc.GmailCredentials,
		GmailToken:         sc.GmailToken,
		MQTTTopic:          sc.Topic,
	}, pub, httpc.Client, logger)

	fmt.Printf("🚨 Channels: %v\n", sos.ChannelNames(channels))
	if len(channels) == 0 {
		fmt.Println("❌ No channel configured, check TWILIO_*, EMERGENCY_* and SMTP_* variables")
		os.Exit(1)
	}
	if *dryRun {
		return
	}

	var locator location.Provider = location.Unavailable{}
	switch {
	case *lat != 0 || *lon != 0:
		locator = location.NewStatic(*lat, *lon)
	case cfg.GPS.Port != "":
		gps, err := location.OpenGPS(cfg.GPS.Port, cfg.GPS.Baud, logger)
		if err != nil {
			fmt.Printf("⚠️  GPS: %v\n", err)
		} else {
			defer gps.Close()
			locator = gps
		}
	}

	sosCfg := sos.DefaultConfig()
	sosCfg.Retries = sc.Retries
	sosCfg.Backoff = sc.Backoff
	d := sos.NewDispatcher(sosCfg, channels, locator, printSpeaker{}, clock.Real{}, logger)

	res := d.Trigger(ctx, *message)
	if res.Err != nil {
		fmt.Printf("❌ Alert failed after %d attempts: %v\n", res.Attempts, res.Err)
		os.Exit(1)
	}
	fmt.Printf("✅ Delivered via %s\n", res.Channel)
}
