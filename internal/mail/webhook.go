package mail

import (
	"errors"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

// WebhookEventReceived is the only webhook event type the service handles.
const WebhookEventReceived = "email.received"

// ErrUnsupportedWebhook marks webhook events that are acknowledged but ignored.
var ErrUnsupportedWebhook = errors.New("webhook type not supported")

// WebhookPayload is the inbound-email webhook body posted by the mail provider.
type WebhookPayload struct {
	Type string      `json:"type"`
	Data WebhookData `json:"data"`
}

// WebhookData carries the received email.
type WebhookData struct {
	From      string            `json:"from"`
	To        []string          `json:"to"`
	Cc        []string          `json:"cc,omitempty"`
	Subject   string            `json:"subject"`
	Text      string            `json:"text,omitempty"`
	HTML      string            `json:"html,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
}

// Normalize validates the payload and converts it to an InboundMessage.
func (p WebhookPayload) Normalize(now time.Time) (domain.InboundMessage, error) {
	var msg domain.InboundMessage
	if p.Type != WebhookEventReceived {
		return msg, ErrUnsupportedWebhook
	}

	address, name := splitAddress(p.Data.From)
	if address == "" {
		return msg, errors.New("webhook payload has no sender")
	}
	msg.From = address
	msg.FromName = name

	for _, raw := range append(append([]string{}, p.Data.To...), p.Data.Cc...) {
		if to, _ := splitAddress(raw); to != "" {
			msg.To = append(msg.To, to)
		}
	}
	msg.Subject = p.Data.Subject
	msg.Body = strings.TrimSpace(p.Data.Text)
	if msg.Body == "" && p.Data.HTML != "" {
		msg.Body = HTMLToText(p.Data.HTML)
	}
	msg.ThreadID = webhookThreadID(p.Data.Headers)

	msg.ReceivedAt = now.UTC()
	if p.Data.CreatedAt != nil {
		msg.ReceivedAt = p.Data.CreatedAt.UTC()
	}
	return msg, nil
}

func webhookThreadID(headers map[string]string) string {
	lookup := func(key string) string {
		for k, v := range headers {
			if strings.EqualFold(k, key) {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	if refs := strings.Fields(lookup("references")); len(refs) > 0 {
		return strings.Trim(refs[0], "<>")
	}
	if reply := lookup("in-reply-to"); reply != "" {
		return strings.Trim(reply, "<>")
	}
	return strings.Trim(lookup("message-id"), "<>")
}

// splitAddress accepts "Name <addr>" or a bare address.
func splitAddress(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if addr, err := gomail.ParseAddress(raw); err == nil {
		return addr.Address, addr.Name
	}
	if strings.Contains(raw, "@") && !strings.ContainsAny(raw, " <>") {
		return raw, ""
	}
	return "", ""
}
