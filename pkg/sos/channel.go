package sos

import (
	"context"
	"strings"
)

// Channel delivers an alert body. Send reports success; failures are
// logged by the channel.
type Channel interface {
	Name() string
	Send(ctx context.Context, body string) bool
}

// ChannelFunc adapts a function to a Channel.
type ChannelFunc struct {
	ChannelName string
	Fn          func(ctx context.Context, body string) bool
}

// Name returns the channel name.
func (c ChannelFunc) Name() string { return c.ChannelName }

// Send calls Fn.
func (c ChannelFunc) Send(ctx context.Context, body string) bool { return c.Fn(ctx, body) }

// NormalizeE164 trims number, collapses a doubled leading '+' and adds one
// when missing. It returns "" for an empty number.
func NormalizeE164(number string) string {
	n := strings.TrimSpace(number)
	if n == "" {
		return ""
	}
	for strings.HasPrefix(n, "++") {
		n = n[1:]
	}
	if !strings.HasPrefix(n, "+") {
		n = "+" + n
	}
	return n
}

// NormalizeWhatsApp returns number as a "whatsapp:+E164" address.
func NormalizeWhatsApp(number string) string {
	n := strings.TrimSpace(number)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "whatsapp:") {
		return n
	}
	return "whatsapp:" + NormalizeE164(n)
}
