package domain

import "time"

// HistoryAction captures what happened in a history entry.
type HistoryAction string

const (
	HistoryCreated              HistoryAction = "created"
	HistoryStatusChanged        HistoryAction = "status_changed"
	HistoryAssigneeChanged      HistoryAction = "assignee_changed"
	HistoryPriorityChanged      HistoryAction = "priority_changed"
	HistoryCommentAdded         HistoryAction = "comment_added"
	HistoryInternalCommentAdded HistoryAction = "internal_comment_added"
	HistoryCommentDeleted       HistoryAction = "comment_deleted"
)

// HistoryEntry is an immutable audit trail entry.
type HistoryEntry struct {
	ID        string
	TicketID  string
	UserID    *string
	Action    HistoryAction
	FieldName *string
	OldValue  *string
	NewValue  *string
	CreatedAt time.Time
}
