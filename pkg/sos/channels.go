package sos

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/teslashibe/go-pathfinder/internal/mqttc"
)

// Credentials holds everything needed to build the delivery channels.
type Credentials struct {
	TwilioSID          string
	TwilioAuth         string
	TwilioFrom         string
	TwilioWhatsAppFrom string
	TwilioBaseURL      string

	Contact         string // SMS recipient
	ContactWhatsApp string // WhatsApp recipient
	Email           string // email recipient

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	GmailCredentials string
	GmailToken       string

	MQTTTopic string
}

// BuildChannels returns the configured channels in escalation order:
// WhatsApp, SMS, email (Gmail API preferred over SMTP) and the caregiver
// MQTT topic. Channels with missing credentials are left out. pub may be nil.
func BuildChannels(ctx context.Context, c Credentials, pub mqttc.Publisher, client *http.Client, logger *slog.Logger) []Channel {
	if logger == nil {
		logger = slog.Default()
	}
	var channels []Channel

	if c.TwilioSID != "" && c.TwilioAuth != "" {
		tw := NewTwilio(c.TwilioSID, c.TwilioAuth, c.TwilioBaseURL, client, logger)
		if c.ContactWhatsApp != "" && (c.TwilioWhatsAppFrom != "" || c.TwilioFrom != "") {
			channels = append(channels, NewTwilioWhatsApp(tw, c.TwilioWhatsAppFrom, c.TwilioFrom, c.ContactWhatsApp))
		}
		if c.Contact != "" && c.TwilioFrom != "" {
			channels = append(channels, NewTwilioSMS(tw, c.TwilioFrom, c.Contact))
		}
	}

	if c.Email != "" {
		var email Channel
		if c.GmailCredentials != "" && c.GmailToken != "" {
			g, err := NewGmail(ctx, c.GmailCredentials, c.GmailToken, c.Email, logger)
			if err != nil {
				logger.Warn("gmail channel unavailable, trying smtp", "error", err)
			} else {
				email = g
			}
		}
		if email == nil && c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != "" {
			email = NewSMTP(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPass, c.Email, logger)
		}
		if email != nil {
			channels = append(channels, email)
		}
	}

	if pub != nil && c.MQTTTopic != "" {
		channels = append(channels, NewMQTT(pub, c.MQTTTopic, logger))
	}
	return channels
}

// ChannelNames lists the channel names in order.
func ChannelNames(channels []Channel) []string {
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = ch.Name()
	}
	return names
}
