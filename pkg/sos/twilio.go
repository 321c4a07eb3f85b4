package sos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/teslashibe/go-pathfinder/internal/httpc"
)

// DefaultTwilioBaseURL is the Twilio REST API root.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// Twilio sends messages through the Twilio Messages REST API.
type Twilio struct {
	sid     string
	token   string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewTwilio creates a Twilio client. baseURL may be empty.
func NewTwilio(sid, token, baseURL string, client *http.Client, logger *slog.Logger) *Twilio {
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	if client == nil {
		client = httpc.Client
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Twilio{
		sid:     sid,
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
		logger:  logger.With("component", "sos.twilio"),
	}
}

// Send posts one message and returns the message SID.
func (t *Twilio) Send(ctx context.Context, from, to, body string) (string, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.sid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(t.sid, t.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var result struct {
		SID     string `json:"sid"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	_ = json.Unmarshal(data, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := result.Message
		if msg == "" {
			msg = string(data)
		}
		return "", fmt.Errorf("twilio: status %d (code %d): %s", resp.StatusCode, result.Code, msg)
	}
	return result.SID, nil
}

// TwilioSMS sends the alert as an SMS.
type TwilioSMS struct {
	client *Twilio
	from   string
	to     string
}

// NewTwilioSMS creates an SMS channel. Numbers are normalized to E.164.
func NewTwilioSMS(client *Twilio, from, to string) *TwilioSMS {
	return &TwilioSMS{client: client, from: NormalizeE164(from), to: NormalizeE164(to)}
}

// Name returns "sms".
func (c *TwilioSMS) Name() string { return "sms" }

// Send implements Channel.
func (c *TwilioSMS) Send(ctx context.Context, body string) bool {
	sid, err := c.client.Send(ctx, c.from, c.to, body)
	if err != nil {
		c.client.logger.Warn("⚠️ Twilio SMS error", "error", err)
		return false
	}
	c.client.logger.Info("sms sent", "sid", sid)
	return true
}

// TwilioWhatsApp sends the alert as a WhatsApp message.
type TwilioWhatsApp struct {
	client *Twilio
	from   string
	to     string
}

// NewTwilioWhatsApp creates a WhatsApp channel. from falls back to the SMS
// sender when empty; both addresses get the "whatsapp:" prefix.
func NewTwilioWhatsApp(client *Twilio, from, smsFrom, to string) *TwilioWhatsApp {
	if strings.TrimSpace(from) == "" {
		from = smsFrom
	}
	return &TwilioWhatsApp{client: client, from: NormalizeWhatsApp(from), to: NormalizeWhatsApp(to)}
}

// Name returns "whatsapp".
func (c *TwilioWhatsApp) Name() string { return "whatsapp" }

// Send implements Channel.
func (c *TwilioWhatsApp) Send(ctx context.Context, body string) bool {
	sid, err := c.client.Send(ctx, c.from, c.to, body)
	if err != nil {
		c.client.logger.Warn("⚠️ Twilio WhatsApp error", "error", err)
		return false
	}
	c.client.logger.Info("whatsapp sent", "sid", sid)
	return true
}
