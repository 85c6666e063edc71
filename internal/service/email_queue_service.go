package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/mail"
	"github.com/greatlakes/greenhouse-tickets/internal/observability"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// DefaultDeliveryBatchSize is used when a run does not pick a batch size.
const DefaultDeliveryBatchSize = 10

// EnqueueInput describes one notification to queue.
type EnqueueInput struct {
	TicketID *string
	ToEmail  string
	CcEmails []string
	Subject  string
	Body     string
	Template domain.EmailTemplate
}

// DeliverySummary counts the outcome of one delivery run.
type DeliverySummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Retrying  int `json:"retrying"`
}

// EmailQueueService owns the outbound queue: enqueueing never sends, a
// separate delivery run drains it.
type EmailQueueService struct {
	queue   repository.EmailQueueRepository
	sender  mail.Sender
	metrics *observability.Metrics
	logger  *zap.Logger
	from    string
	replyTo string
}

// EmailQueueDependencies bundles collaborators.
type EmailQueueDependencies struct {
	QueueRepo repository.EmailQueueRepository
	Sender    mail.Sender
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	From      string
	ReplyTo   string
}

// NewEmailQueueService constructs the service.
func NewEmailQueueService(deps EmailQueueDependencies) *EmailQueueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailQueueService{
		queue:   deps.QueueRepo,
		sender:  deps.Sender,
		metrics: deps.Metrics,
		logger:  logger,
		from:    deps.From,
		replyTo: deps.ReplyTo,
	}
}

// Enqueue inserts a pending entry.
func (s *EmailQueueService) Enqueue(ctx context.Context, in EnqueueInput) (*domain.OutboundEmail, error) {
	to := strings.TrimSpace(in.ToEmail)
	if to == "" {
		return nil, apperrors.NewValidationError("recipient required", map[string]any{"field": "to_email"})
	}
	if strings.TrimSpace(in.Subject) == "" {
		return nil, apperrors.NewValidationError("subject required", map[string]any{"field": "subject"})
	}
	template := in.Template
	if template == "" {
		template = domain.TemplateTicketUpdated
	}
	email := &domain.OutboundEmail{
		TicketID: in.TicketID,
		ToEmail:  to,
		CcEmails: in.CcEmails,
		Subject:  in.Subject,
		Body:     in.Body,
		Template: template,
		Status:   domain.EmailStatusPending,
	}
	if err := s.queue.Enqueue(ctx, email); err != nil {
		return nil, apperrors.MapError(err)
	}
	return email, nil
}

// DeliverPending attempts up to batchSize deliverable entries. Each entry is
// handled independently; only failures that prevent the whole run (listing
// the queue, acquiring a provider credential) are returned.
func (s *EmailQueueService) DeliverPending(ctx context.Context, batchSize int) (DeliverySummary, error) {
	var summary DeliverySummary
	if s.sender == nil {
		return summary, errors.New("no mail sender configured")
	}
	if batchSize <= 0 {
		batchSize = DefaultDeliveryBatchSize
	}
	if authn, ok := s.sender.(mail.Authenticator); ok {
		if err := authn.Authenticate(ctx); err != nil {
			return summary, fmt.Errorf("authenticate %s: %w", s.sender.Name(), err)
		}
	}

	pending, err := s.queue.ListDeliverable(ctx, batchSize)
	if err != nil {
		return summary, fmt.Errorf("list deliverable emails: %w", err)
	}

	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		email := &pending[i]
		summary.Processed++
		s.deliverOne(ctx, email, &summary)
	}

	s.logger.Info("email delivery run finished",
		zap.String("provider", s.sender.Name()),
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("retrying", summary.Retrying))
	return summary, nil
}

func (s *EmailQueueService) deliverOne(ctx context.Context, email *domain.OutboundEmail, summary *DeliverySummary) {
	msg := buildMessage(email, s.from, s.replyTo)
	sendErr := s.sender.Send(ctx, msg)
	if sendErr == nil {
		if err := s.queue.MarkSent(ctx, email.ID); err != nil {
			// the provider accepted it; a rerun may send it again
			s.logger.Error("mark email sent", zap.String("email_id", email.ID), zap.Error(err))
		}
		summary.Sent++
		s.metrics.RecordDelivery("sent")
		return
	}

	updated, err := s.queue.RecordFailure(ctx, email.ID, sendErr.Error())
	if err != nil {
		s.logger.Error("record email failure",
			zap.String("email_id", email.ID),
			zap.NamedError("send_error", sendErr),
			zap.Error(err))
		summary.Retrying++
		s.metrics.RecordDelivery("error")
		return
	}
	if updated.Status == domain.EmailStatusFailed {
		summary.Failed++
		s.metrics.RecordDelivery("failed")
	} else {
		summary.Retrying++
		s.metrics.RecordDelivery("retrying")
	}
	s.logger.Warn("email delivery failed",
		zap.String("email_id", email.ID),
		zap.String("to", email.ToEmail),
		zap.Int("attempts", updated.Attempts),
		zap.String("status", string(updated.Status)),
		zap.Error(sendErr))
}

// Retry resubmits a failed entry for delivery. Global admins only.
func (s *EmailQueueService) Retry(ctx context.Context, caller auth.Caller, id string) (*domain.OutboundEmail, error) {
	if !auth.IsGlobalAdmin(caller.Role) {
		return nil, apperrors.NewForbidden("only global admins may retry emails")
	}
	if err := s.queue.ResetForRetry(ctx, id); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		existing, getErr := s.queue.GetByID(ctx, id)
		if getErr != nil {
			if errors.Is(getErr, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("email", map[string]any{"email_id": id})
			}
			return nil, apperrors.MapError(getErr)
		}
		return nil, apperrors.NewConflict("only failed emails can be retried", map[string]any{
			"email_id": id,
			"status":   existing.Status,
		})
	}
	email, err := s.queue.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return email, nil
}
