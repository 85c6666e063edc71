package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/events"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

var (
	ticketNumberPattern = regexp.MustCompile(`#(\d+)`)
	replyPrefixPattern  = regexp.MustCompile(`(?i)^\s*(re|fwd?):\s*`)
)

// correlateTicketNumber extracts the first "#<digits>" token from subject.
// Thread-id based correlation would replace this function only.
func correlateTicketNumber(subject string) (int64, bool) {
	match := ticketNumberPattern.FindStringSubmatch(subject)
	if match == nil {
		return 0, false
	}
	number, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return number, true
}

// stripReplyPrefixes removes leading "Re:" and "Fwd:" markers.
func stripReplyPrefixes(subject string) string {
	for {
		stripped := replyPrefixPattern.ReplaceAllString(subject, "")
		if stripped == subject {
			return strings.TrimSpace(stripped)
		}
		subject = stripped
	}
}

func replyText(body string) string {
	if strings.TrimSpace(body) == "" {
		return "No content"
	}
	return body
}

func requesterName(msg domain.InboundMessage) string {
	if name := strings.TrimSpace(msg.FromName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(msg.From, "@")
	return local
}

// Correlator attaches inbound email to an existing ticket or opens a new one.
type Correlator struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	departments repository.DepartmentRepository
	history     historyLedger
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	clock       Clock
}

// CorrelatorDependencies bundles repositories.
type CorrelatorDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	DepartmentRepo repository.DepartmentRepository
	HistoryRepo    repository.HistoryRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Clock          Clock
}

// NewCorrelator constructs the correlator.
func NewCorrelator(deps CorrelatorDependencies) *Correlator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		departments: deps.DepartmentRepo,
		history:     historyLedger{repo: deps.HistoryRepo},
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		clock:       deps.Clock,
	}
}

// Process correlates one inbound message. A subject naming an existing
// ticket makes it a reply; otherwise the recipient mailbox picks the
// department of a new ticket. Rejections are client-class DomainErrors.
func (c *Correlator) Process(ctx context.Context, msg domain.InboundMessage) (*domain.InboundOutcome, error) {
	msg.From = strings.TrimSpace(msg.From)
	if msg.From == "" {
		return nil, apperrors.NewValidationError("sender required", map[string]any{"field": "from"})
	}

	if number, ok := correlateTicketNumber(msg.Subject); ok {
		ticket, err := c.tickets.GetByNumber(ctx, number)
		switch {
		case err == nil:
			return c.reply(ctx, ticket, msg)
		case errors.Is(err, pgx.ErrNoRows):
			c.logger.Info("subject names unknown ticket, trying department mailbox", zap.Int64("ticket_number", number))
		default:
			return nil, apperrors.MapError(err)
		}
	}

	dept, err := c.resolveDepartment(ctx, msg.To)
	if err != nil {
		return nil, err
	}
	if dept == nil {
		c.logger.Warn("unresolved inbound email",
			zap.String("from", msg.From),
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject))
		return nil, apperrors.NewUnresolvedInbound(map[string]any{"to": msg.To})
	}
	return c.createTicket(ctx, dept, msg)
}

func (c *Correlator) resolveDepartment(ctx context.Context, recipients []string) (*domain.Department, error) {
	for _, addr := range recipients {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" {
			continue
		}
		dept, err := c.departments.GetByEmail(ctx, addr)
		if err == nil {
			return dept, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
	}
	return nil, nil
}

func (c *Correlator) reply(ctx context.Context, ticket *domain.Ticket, msg domain.InboundMessage) (*domain.InboundOutcome, error) {
	if !strings.EqualFold(strings.TrimSpace(ticket.RequesterEmail), msg.From) {
		c.logger.Warn("inbound reply sender mismatch",
			zap.Int64("ticket_number", ticket.Number),
			zap.String("from", msg.From))
		return nil, apperrors.NewCorrelationMismatch()
	}

	comment := &domain.Comment{
		TicketID: ticket.ID,
		Body:     fmt.Sprintf("[Email Reply from %s]\n\n%s", msg.From, replyText(msg.Body)),
	}
	if err := c.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := c.history.commentAdded(ctx, comment); err != nil {
		return nil, err
	}

	outcome := &domain.InboundOutcome{
		Action:       domain.InboundReplied,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		CommentID:    comment.ID,
	}
	if ticket.Status == domain.TicketStatusOnHold {
		outcome.StatusChanged = c.resume(ctx, ticket)
	}

	publishEvent(ctx, c.dispatcher, c.logger, events.Event{
		Type:     events.EventInboundReply,
		TicketID: ticket.ID,
		Actor:    emailActor(msg.From),
		Payload:  events.InboundReplyPayload{Ticket: *ticket, From: msg.From, Body: msg.Body},
	})
	return outcome, nil
}

// resume moves an on_hold ticket back to todo once the requester answered.
// The reply comment is already stored, so a failed move is only logged.
func (c *Correlator) resume(ctx context.Context, ticket *domain.Ticket) bool {
	cmd := NewStatusCommand(ticket, domain.TicketStatusTodo)
	cmd.Apply(ticket, c.clock.now())
	if err := c.tickets.UpdateStatus(ctx, ticket.ID, ticket.Status, ticket.CompletedAt); err != nil {
		cmd.Revert(ticket)
		c.logger.Error("resume ticket after reply", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	if err := c.history.statusChanged(ctx, ticket.ID, nil, cmd.From, cmd.To); err != nil {
		c.logger.Error("record resume", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return true
}

func (c *Correlator) createTicket(ctx context.Context, dept *domain.Department, msg domain.InboundMessage) (*domain.InboundOutcome, error) {
	title := stripReplyPrefixes(msg.Subject)
	if title == "" {
		title = "(no subject)"
	}
	description := strings.TrimSpace(msg.Body)
	if description == "" {
		description = "No description provided"
	}
	ticket := &domain.Ticket{
		Title:          title,
		Description:    description,
		Priority:       domain.TicketPriorityMedium,
		Status:         domain.TicketStatusTodo,
		DepartmentID:   dept.ID,
		RequesterName:  requesterName(msg),
		RequesterEmail: msg.From,
		CreatedVia:     domain.TicketSourceEmail,
		EmailThreadID:  optionalID(strings.TrimSpace(msg.ThreadID)),
	}
	if err := c.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := c.history.created(ctx, ticket, nil); err != nil {
		return nil, err
	}
	c.logger.Info("ticket created from email",
		zap.Int64("ticket_number", ticket.Number),
		zap.String("department", dept.Name),
		zap.String("from", msg.From))

	publishEvent(ctx, c.dispatcher, c.logger, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    emailActor(msg.From),
		Payload:  events.TicketCreatedPayload{Ticket: *ticket},
	})
	return &domain.InboundOutcome{
		Action:       domain.InboundTicketCreated,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
	}, nil
}
