package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/events"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// CommentService manages the comment thread of a ticket.
type CommentService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	history    historyLedger
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// CommentDependencies bundles repositories.
type CommentDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.HistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		history:    historyLedger{repo: deps.HistoryRepo},
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// AddComment appends a comment. External comments notify the requester.
func (s *CommentService) AddComment(ctx context.Context, caller auth.Caller, ticketID, body string, isInternal bool) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment required", map[string]any{"field": "comment"})
	}
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanEditTicket(caller, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	comment := &domain.Comment{
		TicketID:   ticket.ID,
		UserID:     optionalID(caller.ID),
		Body:       body,
		IsInternal: isInternal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.history.commentAdded(ctx, comment); err != nil {
		return nil, err
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticket.ID,
		Actor:    callerActor(caller),
		Payload:  events.CommentAddedPayload{Ticket: *ticket, Comment: *comment},
	})
	return comment, nil
}

// ListComments returns the ticket's thread, internal notes included.
func (s *CommentService) ListComments(ctx context.Context, caller auth.Caller, ticketID string) ([]domain.Comment, error) {
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanViewTicket(caller, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// ListPublicComments returns the requester-visible part of the thread.
func (s *CommentService) ListPublicComments(ctx context.Context, ticket *domain.Ticket) ([]domain.Comment, error) {
	comments, err := s.comments.ListByTicket(ctx, ticket.ID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// DeleteComment removes a comment. Only its author may, and the deletion is
// recorded in the ticket history.
func (s *CommentService) DeleteComment(ctx context.Context, caller auth.Caller, commentID string) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
		}
		return apperrors.MapError(err)
	}
	ticket, err := loadTicket(ctx, s.tickets, comment.TicketID)
	if err != nil {
		return err
	}
	if !auth.CanDeleteComment(caller, ticket, comment) {
		return apperrors.NewForbidden("only the author may delete a comment")
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return apperrors.MapError(err)
	}
	return s.history.commentDeleted(ctx, comment, optionalID(caller.ID))
}
