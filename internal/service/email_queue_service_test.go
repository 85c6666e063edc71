package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

func enqueue(t *testing.T, h *harness, to string, attempts int) *domain.OutboundEmail {
	t.Helper()
	email, err := h.queueSvc.Enqueue(context.Background(), EnqueueInput{
		ToEmail:  to,
		Subject:  "Ticket update",
		Body:     "body",
		Template: domain.TemplateCommentAdded,
	})
	require.NoError(t, err)
	h.queue.mu.Lock()
	h.queue.find(email.ID).Attempts = attempts
	h.queue.mu.Unlock()
	return email
}

func TestEnqueueNeverSends(t *testing.T) {
	h := newHarness()
	email := enqueue(t, h, "a@example.com", 0)

	assert.Equal(t, domain.EmailStatusPending, email.Status)
	assert.Empty(t, h.sender.sent)

	_, err := h.queueSvc.Enqueue(context.Background(), EnqueueInput{Subject: "x"})
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))
}

func TestDeliverPendingFailureBound(t *testing.T) {
	h := newHarness()
	h.sender.failFor = map[string]error{
		"second@example.com": errors.New("503 from provider"),
		"third@example.com":  errors.New("503 from provider"),
	}
	ok := enqueue(t, h, "ok@example.com", 0)
	second := enqueue(t, h, "second@example.com", 1)
	third := enqueue(t, h, "third@example.com", 2)

	summary, err := h.queueSvc.DeliverPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, DeliverySummary{Processed: 3, Sent: 1, Failed: 1, Retrying: 1}, summary)

	got, _ := h.queue.GetByID(context.Background(), ok.ID)
	assert.Equal(t, domain.EmailStatusSent, got.Status)
	assert.NotNil(t, got.SentAt)

	got, _ = h.queue.GetByID(context.Background(), second.ID)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, domain.EmailStatusPending, got.Status)

	got, _ = h.queue.GetByID(context.Background(), third.ID)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, domain.EmailStatusFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "503")

	summary, err = h.queueSvc.DeliverPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed, "only the retrying entry is picked up again")
}

func TestDeliverPendingRespectsBatchSize(t *testing.T) {
	h := newHarness()
	for i := 0; i < 5; i++ {
		enqueue(t, h, "bulk@example.com", 0)
	}
	summary, err := h.queueSvc.DeliverPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sent)
}

func TestDeliverPendingStopsWhenCredentialFails(t *testing.T) {
	h := newHarness()
	h.sender.authErr = errors.New("invalid_client")
	email := enqueue(t, h, "a@example.com", 0)

	_, err := h.queueSvc.DeliverPending(context.Background(), 10)
	require.Error(t, err)

	got, _ := h.queue.GetByID(context.Background(), email.ID)
	assert.Equal(t, 0, got.Attempts, "a credential failure is not charged to the entry")
}

func TestDeliveredMessageFormatting(t *testing.T) {
	h := newHarness()
	ticket := h.seedTicket(domain.Ticket{})
	_, err := h.ticketSvc.RequestInfo(context.Background(), h.caller("maint-user"), ticket.ID, "Photo of the gauge please")
	require.NoError(t, err)

	_, err = h.queueSvc.DeliverPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, h.sender.sent, 1)

	msg := h.sender.sent[0]
	assert.Equal(t, "tickets@greatlakesg.com", msg.ReplyTo)
	assert.Equal(t, ticket.ID, msg.Headers["X-Ticket-ID"])
	assert.Equal(t, ticket.ID, msg.Headers["X-Email-Thread-ID"])
	assert.Contains(t, msg.Text, "Information Requested")
	assert.Contains(t, msg.Text, "Please reply to this email with the requested information.")
	assert.Contains(t, msg.Text, "Great Lakes Greenhouses Maintenance System")
	assert.Contains(t, msg.HTML, "<p>")
}

func TestFormatEmailBodyHeaders(t *testing.T) {
	number := int64(204)
	cases := map[domain.EmailTemplate]string{
		domain.TemplateTicketCreated: "Ticket #204 - Created\n\nbody",
		domain.TemplateTicketUpdated: "Ticket #204 - Updated\n\nbody",
		domain.TemplateCommentAdded:  "Ticket #204 - New Comment\n\nbody",
		domain.TemplateStatusChanged: "Ticket #204 - Status Changed\n\nbody",
	}
	for template, prefix := range cases {
		body := FormatEmailBody(&domain.OutboundEmail{TicketNumber: &number, Template: template, Body: "body"})
		assert.Truef(t, len(body) > len(prefix) && body[:len(prefix)] == prefix, "%s: %q", template, body)
	}
	assert.Contains(t, FormatEmailBody(&domain.OutboundEmail{Body: "x"}), "Ticket #N/A")
}

func TestRetryFailedEmail(t *testing.T) {
	h := newHarness()
	email := enqueue(t, h, "a@example.com", 0)

	_, err := h.queueSvc.Retry(context.Background(), h.caller("maint-admin"), email.ID)
	assert.True(t, apperrors.HasCode(err, "FORBIDDEN"))

	_, err = h.queueSvc.Retry(context.Background(), h.caller("global"), email.ID)
	assert.True(t, apperrors.HasCode(err, "CONFLICT"), "pending entries are not retried")

	h.queue.mu.Lock()
	row := h.queue.find(email.ID)
	row.Status = domain.EmailStatusFailed
	row.Attempts = 3
	h.queue.mu.Unlock()

	retried, err := h.queueSvc.Retry(context.Background(), h.caller("global"), email.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailStatusPending, retried.Status)
	assert.Equal(t, 0, retried.Attempts)

	_, err = h.queueSvc.Retry(context.Background(), h.caller("global"), "missing")
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}
