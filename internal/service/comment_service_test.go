package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

func TestAddExternalCommentNotifiesRequester(t *testing.T) {
	h := newHarness()
	ticket := h.seedTicket(domain.Ticket{})

	comment, err := h.commentSvc.AddComment(context.Background(), h.caller("maint-user"), ticket.ID, "  Parts ordered ", false)
	require.NoError(t, err)
	assert.Equal(t, "Parts ordered", comment.Body)
	require.NotNil(t, comment.UserID)
	assert.Equal(t, "maint-user", *comment.UserID)

	queued := h.queue.all()
	require.Len(t, queued, 1)
	assert.Equal(t, "New Comment on Ticket #1000", queued[0].Subject)
	assert.Equal(t, "Parts ordered", queued[0].Body)
	assert.Equal(t, domain.TemplateCommentAdded, queued[0].Template)
	assert.Equal(t, []domain.HistoryAction{domain.HistoryCommentAdded}, h.history.actions(ticket.ID))
}

func TestAddInternalCommentStaysInternal(t *testing.T) {
	h := newHarness()
	ticket := h.seedTicket(domain.Ticket{})

	_, err := h.commentSvc.AddComment(context.Background(), h.caller("maint-user"), ticket.ID, "check the breaker first", true)
	require.NoError(t, err)
	assert.Empty(t, h.queue.all())
	assert.Equal(t, []domain.HistoryAction{domain.HistoryInternalCommentAdded}, h.history.actions(ticket.ID))

	public, err := h.commentSvc.ListPublicComments(context.Background(), ticket)
	require.NoError(t, err)
	assert.Empty(t, public)

	all, err := h.commentSvc.ListComments(context.Background(), h.caller("maint-user"), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAddCommentRejectsEmptyAndInvisible(t *testing.T) {
	h := newHarness()
	ticket := h.seedTicket(domain.Ticket{DepartmentID: electricalID})

	_, err := h.commentSvc.AddComment(context.Background(), h.caller("elec-user"), ticket.ID, "   ", false)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))

	_, err = h.commentSvc.AddComment(context.Background(), h.caller("maint-user"), ticket.ID, "hello", false)
	assert.True(t, apperrors.HasCode(err, "FORBIDDEN"))
	assert.Empty(t, h.comments.forTicket(ticket.ID))
}

func TestDeleteCommentOnlyByAuthor(t *testing.T) {
	h := newHarness()
	ticket := h.seedTicket(domain.Ticket{})
	comment, err := h.commentSvc.AddComment(context.Background(), h.caller("maint-user"), ticket.ID, "wrong ticket, sorry", true)
	require.NoError(t, err)

	err = h.commentSvc.DeleteComment(context.Background(), h.caller("maint-admin"), comment.ID)
	assert.True(t, apperrors.HasCode(err, "FORBIDDEN"))
	err = h.commentSvc.DeleteComment(context.Background(), h.caller("global"), comment.ID)
	assert.True(t, apperrors.HasCode(err, "FORBIDDEN"))

	require.NoError(t, h.commentSvc.DeleteComment(context.Background(), h.caller("maint-user"), comment.ID))
	assert.Empty(t, h.comments.forTicket(ticket.ID))
	assert.Equal(t, []domain.HistoryAction{
		domain.HistoryInternalCommentAdded,
		domain.HistoryCommentDeleted,
	}, h.history.actions(ticket.ID))

	err = h.commentSvc.DeleteComment(context.Background(), h.caller("maint-user"), comment.ID)
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}

func TestStringPreviewKeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("a", 119) + "é la vanne fuit"
	preview := stringPreview(body, 120)

	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, strings.Repeat("a", 119)+"é...", preview)
	assert.Equal(t, "short", stringPreview("  short  ", 120))
}

func TestDeleteCommentPreviewIsValidUTF8(t *testing.T) {
	h := newHarness()
	ticket := h.seedTicket(domain.Ticket{})
	body := strings.Repeat("é", 200)
	comment, err := h.commentSvc.AddComment(context.Background(), h.caller("maint-user"), ticket.ID, body, false)
	require.NoError(t, err)

	require.NoError(t, h.commentSvc.DeleteComment(context.Background(), h.caller("maint-user"), comment.ID))

	entries, err := h.history.ListByTicket(context.Background(), ticket.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	deleted := entries[0]
	require.Equal(t, domain.HistoryCommentDeleted, deleted.Action)
	require.NotNil(t, deleted.OldValue)
	assert.True(t, utf8.ValidString(*deleted.OldValue))
	assert.Equal(t, strings.Repeat("é", 120)+"...", *deleted.OldValue)
}
