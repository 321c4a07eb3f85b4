package sos

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// EmailSubject is the subject line of alert emails.
const EmailSubject = "Emergency Alert"

// BuildEmail renders a plain text RFC 5322 message.
func BuildEmail(from, to, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + EmailSubject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// SMTP sends the alert over SMTP with implicit TLS (port 465).
type SMTP struct {
	host     string
	port     int
	user     string
	password string
	to       string
	tlsCfg   *tls.Config
	logger   *slog.Logger
}

// NewSMTP creates an SMTP channel. user is also the sender address.
func NewSMTP(host string, port int, user, password, to string, logger *slog.Logger) *SMTP {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTP{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		to:       to,
		tlsCfg:   &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
		logger:   logger.With("component", "sos.smtp"),
	}
}

// Name returns "email".
func (s *SMTP) Name() string { return "email" }

// Send implements Channel.
func (s *SMTP) Send(ctx context.Context, body string) bool {
	if err := s.send(ctx, body); err != nil {
		s.logger.Warn("⚠️ Email error", "error", err)
		return false
	}
	s.logger.Info("email sent", "to", s.to)
	return true
}

func (s *SMTP) send(ctx context.Context, body string) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}, Config: s.tlsCfg}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if err := c.Auth(smtp.PlainAuth("", s.user, s.password, s.host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(s.user); err != nil {
		return err
	}
	if err := c.Rcpt(s.to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(BuildEmail(s.user, s.to, body)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// Gmail sends the alert through the Gmail API as the authorized user.
type Gmail struct {
	svc    *gmail.Service
	from   string
	to     string
	logger *slog.Logger
}

// NewGmail builds a Gmail channel from an OAuth client credentials file and
// a previously authorized token file.
func NewGmail(ctx context.Context, credentialsFile, tokenFile, to string, logger *slog.Logger) (*Gmail, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(creds, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}

	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse gmail token: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGmailWithService(svc, "me", to, logger), nil
}

// NewGmailWithService creates a channel on an existing service.
func NewGmailWithService(svc *gmail.Service, from, to string, logger *slog.Logger) *Gmail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gmail{svc: svc, from: from, to: to, logger: logger.With("component", "sos.gmail")}
}

// Name returns "gmail".
func (g *Gmail) Name() string { return "gmail" }

// Send implements Channel.
func (g *Gmail) Send(ctx context.Context, body string) bool {
	raw := base64.URLEncoding.EncodeToString(BuildEmail(g.from, g.to, body))
	msg, err := g.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		g.logger.Warn("⚠️ Gmail error", "error", err)
		return false
	}
	g.logger.Info("gmail sent", "id", msg.Id)
	return true
}
