package service

import (
	"context"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// DefaultHistoryLimit is how many entries the ticket detail view shows.
const DefaultHistoryLimit = 10

// historyLedger appends audit entries. Entries are never updated or removed.
type historyLedger struct {
	repo repository.HistoryRepository
}

func (l historyLedger) append(ctx context.Context, ticketID string, actor *string, action domain.HistoryAction, field string, oldValue, newValue *string) error {
	if l.repo == nil {
		return nil
	}
	entry := &domain.HistoryEntry{
		TicketID: ticketID,
		UserID:   actor,
		Action:   action,
		OldValue: oldValue,
		NewValue: newValue,
	}
	if field != "" {
		entry.FieldName = strPtr(field)
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (l historyLedger) created(ctx context.Context, ticket *domain.Ticket, actor *string) error {
	return l.append(ctx, ticket.ID, actor, domain.HistoryCreated, "", nil, strPtr(string(ticket.Status)))
}

func (l historyLedger) statusChanged(ctx context.Context, ticketID string, actor *string, from, to domain.TicketStatus) error {
	return l.append(ctx, ticketID, actor, domain.HistoryStatusChanged, "status", strPtr(string(from)), strPtr(string(to)))
}

func (l historyLedger) priorityChanged(ctx context.Context, ticketID string, actor *string, from, to domain.TicketPriority) error {
	return l.append(ctx, ticketID, actor, domain.HistoryPriorityChanged, "priority", strPtr(string(from)), strPtr(string(to)))
}

func (l historyLedger) assigneeChanged(ctx context.Context, ticketID string, actor *string, from, to *string) error {
	return l.append(ctx, ticketID, actor, domain.HistoryAssigneeChanged, "assigned_to", from, to)
}

func (l historyLedger) commentAdded(ctx context.Context, comment *domain.Comment) error {
	action := domain.HistoryCommentAdded
	if comment.IsInternal {
		action = domain.HistoryInternalCommentAdded
	}
	return l.append(ctx, comment.TicketID, comment.UserID, action, "comment", nil, strPtr(comment.ID))
}

func (l historyLedger) commentDeleted(ctx context.Context, comment *domain.Comment, actor *string) error {
	return l.append(ctx, comment.TicketID, actor, domain.HistoryCommentDeleted, "comment", strPtr(stringPreview(comment.Body, 120)), nil)
}

func (l historyLedger) list(ctx context.Context, ticketID string, limit int) ([]domain.HistoryEntry, error) {
	if l.repo == nil {
		return []domain.HistoryEntry{}, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	entries, err := l.repo.ListByTicket(ctx, ticketID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}
