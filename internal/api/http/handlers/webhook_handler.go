package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/api/dto"
	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/mail"
	"github.com/greatlakes/greenhouse-tickets/internal/observability"
	"github.com/greatlakes/greenhouse-tickets/internal/service"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// WebhookSecretHeader carries the shared secret of the inbound webhook.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookHandler accepts inbound email pushed by the mail provider.
type WebhookHandler struct {
	correlator service.InboundProcessor
	secretHash string
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewWebhookHandler constructs handler. An empty secretHash rejects every call.
func NewWebhookHandler(correlator service.InboundProcessor, secretHash string, metrics *observability.Metrics, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{correlator: correlator, secretHash: secretHash, metrics: metrics, logger: logger}
}

// ReceiveEmail POST /webhooks/email.
func (h *WebhookHandler) ReceiveEmail(c *fiber.Ctx) error {
	if !auth.VerifySecret(h.secretHash, c.Get(WebhookSecretHeader)) {
		return apperrors.NewUnauthorized("invalid webhook secret")
	}

	var payload mail.WebhookPayload
	if err := parseBody(c, &payload); err != nil {
		return err
	}
	msg, err := payload.Normalize(time.Now().UTC())
	if errors.Is(err, mail.ErrUnsupportedWebhook) {
		h.metrics.RecordInbound("webhook", "ignored")
		return c.JSON(fiber.Map{"data": fiber.Map{"status": "ignored", "type": payload.Type}})
	}
	if err != nil {
		h.metrics.RecordInbound("webhook", "rejected")
		return apperrors.NewValidationError(err.Error(), nil)
	}

	outcome, err := h.correlator.Process(c.UserContext(), msg)
	if err != nil {
		result := "error"
		if apperrors.IsClientError(err) {
			result = "rejected"
		}
		h.metrics.RecordInbound("webhook", result)
		h.logger.Warn("webhook email not processed",
			zap.String("from", msg.From),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return err
	}
	h.metrics.RecordInbound("webhook", "processed")

	status := http.StatusOK
	if outcome.Action == domain.InboundTicketCreated {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.InboundResponse{
		Action:        outcome.Action,
		TicketID:      outcome.TicketID,
		TicketNumber:  outcome.TicketNumber,
		CommentID:     outcome.CommentID,
		StatusChanged: outcome.StatusChanged,
	}})
}
