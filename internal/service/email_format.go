package service

import (
	"fmt"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/mail"
)

const emailFooter = "\n\n---\nThis is an automated message from Great Lakes Greenhouses Maintenance System.\nTo respond to this ticket, simply reply to this email."

// FormatEmailBody wraps a queued body with the ticket header and the
// standard footer.
func FormatEmailBody(email *domain.OutboundEmail) string {
	header := "Ticket #N/A"
	if email.TicketNumber != nil {
		header = fmt.Sprintf("Ticket #%d", *email.TicketNumber)
	}
	switch email.Template {
	case domain.TemplateTicketCreated:
		return header + " - Created\n\n" + email.Body + emailFooter
	case domain.TemplateTicketUpdated:
		return header + " - Updated\n\n" + email.Body + emailFooter
	case domain.TemplateCommentAdded:
		return header + " - New Comment\n\n" + email.Body + emailFooter
	case domain.TemplateStatusChanged:
		return header + " - Status Changed\n\n" + email.Body + emailFooter
	case domain.TemplateInfoRequested:
		return header + " - Information Requested\n\n" + email.Body +
			"\n\nPlease reply to this email with the requested information." + emailFooter
	default:
		return header + "\n\n" + email.Body + emailFooter
	}
}

// buildMessage turns a queue entry into a provider message.
func buildMessage(email *domain.OutboundEmail, from, replyTo string) mail.Message {
	text := FormatEmailBody(email)
	msg := mail.Message{
		From:    from,
		To:      []string{email.ToEmail},
		Cc:      email.CcEmails,
		Subject: email.Subject,
		Text:    text,
		Headers: map[string]string{},
	}
	if html, err := mail.RenderHTML(text); err == nil {
		msg.HTML = html
	}
	if email.TicketID != nil {
		msg.Headers["X-Ticket-ID"] = *email.TicketID
		msg.Headers["X-Email-Thread-ID"] = *email.TicketID
	}
	if email.Template == domain.TemplateInfoRequested {
		msg.ReplyTo = replyTo
	}
	return msg
}
