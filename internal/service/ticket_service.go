package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/events"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	departments repository.DepartmentRepository
	assignments *AssignmentService
	history     historyLedger
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	clock       Clock
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	DepartmentRepo repository.DepartmentRepository
	HistoryRepo    repository.HistoryRepository
	Assignments    *AssignmentService
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Clock          Clock
}

// TicketCreateInput describes the internal ticket form.
type TicketCreateInput struct {
	DepartmentID   string
	Title          string
	Description    string
	Priority       domain.TicketPriority
	AssignedTo     *string
	RequesterName  string
	RequesterEmail string
	RequesterPhone string
}

// PublicTicketInput describes the public form. The requester email always
// comes from the sign-in token.
type PublicTicketInput struct {
	DepartmentID   string
	Title          string
	Description    string
	Priority       domain.TicketPriority
	RequesterName  string
	RequesterPhone string
}

// TicketUpdateInput is a full edit from the detail view. Nil fields are left
// unchanged; ClearAssignee unassigns.
type TicketUpdateInput struct {
	Title         *string
	Description   *string
	Priority      *domain.TicketPriority
	Status        *domain.TicketStatus
	AssignedTo    *string
	ClearAssignee bool
}

// TicketListFilter holds the UI-selected filters.
type TicketListFilter struct {
	Search       string
	DepartmentID *string
	AssignedTo   *string
	Unassigned   bool
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	Limit        int
	Offset       int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		departments: deps.DepartmentRepo,
		assignments: deps.Assignments,
		history:     historyLedger{repo: deps.HistoryRepo},
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		clock:       deps.Clock,
	}
}

// CreateTicket creates a ticket from the internal form.
func (s *TicketService) CreateTicket(ctx context.Context, caller auth.Caller, input TicketCreateInput) (*domain.Ticket, error) {
	if caller.ID == "" {
		return nil, apperrors.NewUnauthorized("profile required")
	}
	if strings.TrimSpace(input.RequesterEmail) == "" {
		return nil, apperrors.NewValidationError("requester email required", map[string]any{"field": "requester_email"})
	}
	ticket, err := s.newTicket(ctx, input.DepartmentID, input.Title, input.Description, input.Priority)
	if err != nil {
		return nil, err
	}
	if input.AssignedTo != nil && *input.AssignedTo != "" {
		if !auth.CanManageDepartment(caller, ticket.DepartmentID) && *input.AssignedTo != caller.ID {
			return nil, apperrors.NewForbidden("not allowed to assign tickets in this department")
		}
		if err := s.assignments.CheckAssignee(ctx, caller, ticket.DepartmentID, *input.AssignedTo); err != nil {
			return nil, err
		}
		ticket.AssignedTo = strPtr(*input.AssignedTo)
	}
	ticket.RequesterName = strings.TrimSpace(input.RequesterName)
	ticket.RequesterEmail = strings.TrimSpace(input.RequesterEmail)
	ticket.RequesterPhone = strings.TrimSpace(input.RequesterPhone)
	ticket.CreatedVia = domain.TicketSourceInternal
	ticket.CreatedBy = strPtr(caller.ID)

	if err := s.persistNewTicket(ctx, ticket, callerActor(caller)); err != nil {
		return nil, err
	}
	return ticket, nil
}

// CreatePublicTicket creates a ticket from the public form for a signed-in
// requester who has no operator profile.
func (s *TicketService) CreatePublicTicket(ctx context.Context, identity auth.Identity, input PublicTicketInput) (*domain.Ticket, error) {
	if strings.TrimSpace(identity.Email) == "" {
		return nil, apperrors.NewUnauthorized("signed-in email required")
	}
	ticket, err := s.newTicket(ctx, input.DepartmentID, input.Title, input.Description, input.Priority)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.RequesterName)
	if name == "" {
		name = identity.Name
	}
	phone := strings.TrimSpace(input.RequesterPhone)
	if phone == "" {
		phone = identity.Phone
	}
	ticket.RequesterName = name
	ticket.RequesterEmail = identity.Email
	ticket.RequesterPhone = phone
	ticket.CreatedVia = domain.TicketSourcePublicForm

	if err := s.persistNewTicket(ctx, ticket, emailActor(identity.Email)); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) newTicket(ctx context.Context, departmentID, title, description string, priority domain.TicketPriority) (*domain.Ticket, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", map[string]any{"field": "title"})
	}
	if departmentID == "" {
		return nil, apperrors.NewValidationError("department required", map[string]any{"field": "department_id"})
	}
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	if _, err := loadDepartment(ctx, s.departments, departmentID); err != nil {
		return nil, err
	}
	return &domain.Ticket{
		DepartmentID: departmentID,
		Title:        title,
		Description:  strings.TrimSpace(description),
		Priority:     priority,
		Status:       domain.TicketStatusTodo,
	}, nil
}

// persistNewTicket stores ticket, records its creation and publishes the
// event that queues the requester confirmation.
func (s *TicketService) persistNewTicket(ctx context.Context, ticket *domain.Ticket, actor events.Actor) error {
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.history.created(ctx, ticket, actor.ProfileID); err != nil {
		return err
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload:  events.TicketCreatedPayload{Ticket: *ticket},
	})
	return nil
}

// GetTicket returns a ticket the caller may see.
func (s *TicketService) GetTicket(ctx context.Context, caller auth.Caller, id string) (*domain.Ticket, error) {
	ticket, err := loadTicket(ctx, s.tickets, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanViewTicket(caller, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// GetTicketByNumber looks a ticket up by its display number.
func (s *TicketService) GetTicketByNumber(ctx context.Context, caller auth.Caller, number int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !auth.CanViewTicket(caller, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// GetPublicTicket returns the ticket with the given number only to its
// requester. Any other email gets not found.
func (s *TicketService) GetPublicTicket(ctx context.Context, identity auth.Identity, number int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !strings.EqualFold(ticket.RequesterEmail, identity.Email) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_number": number})
	}
	return ticket, nil
}

// ListTickets applies the caller's visibility on top of the UI filters.
func (s *TicketService) ListTickets(ctx context.Context, caller auth.Caller, filter TicketListFilter) ([]domain.Ticket, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
		}
	}
	for _, priority := range filter.Priorities {
		if !priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
		}
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Scope:        auth.TicketScope(caller),
		Search:       optionalID(strings.TrimSpace(filter.Search)),
		DepartmentID: filter.DepartmentID,
		AssignedTo:   filter.AssignedTo,
		Unassigned:   filter.Unassigned,
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// UpdateTicket applies a full edit in one write and records one history
// entry per tracked field that changed.
func (s *TicketService) UpdateTicket(ctx context.Context, caller auth.Caller, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := loadTicket(ctx, s.tickets, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanEditTicket(caller, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	before := *ticket
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title required", map[string]any{"field": "title"})
		}
		ticket.Title = title
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		domain.ApplyStatus(ticket, *input.Status, s.clock.now())
	}

	newAssignee := ticket.AssignedTo
	if input.ClearAssignee {
		newAssignee = nil
	} else if input.AssignedTo != nil && *input.AssignedTo != "" {
		newAssignee = strPtr(*input.AssignedTo)
	}
	if !sameOptional(before.AssignedTo, newAssignee) {
		if !auth.CanReassignTicket(caller, ticket) {
			return nil, apperrors.NewForbidden("not allowed to reassign this ticket")
		}
		if newAssignee != nil {
			if err := s.assignments.CheckAssignee(ctx, caller, ticket.DepartmentID, *newAssignee); err != nil {
				return nil, err
			}
		}
		ticket.AssignedTo = newAssignee
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	actor := optionalID(caller.ID)
	if before.Status != ticket.Status {
		if err := s.history.statusChanged(ctx, ticket.ID, actor, before.Status, ticket.Status); err != nil {
			return nil, err
		}
		s.logReopen(ticket, before.Status)
	}
	if !sameOptional(before.AssignedTo, ticket.AssignedTo) {
		if err := s.history.assigneeChanged(ctx, ticket.ID, actor, before.AssignedTo, ticket.AssignedTo); err != nil {
			return nil, err
		}
	}
	if before.Priority != ticket.Priority {
		if err := s.history.priorityChanged(ctx, ticket.ID, actor, before.Priority, ticket.Priority); err != nil {
			return nil, err
		}
	}
	return ticket, nil
}

// MoveTicket is the kanban move: one status write, reverted on failure.
// When the write fails the error details carry the persisted ticket state.
func (s *TicketService) MoveTicket(ctx context.Context, caller auth.Caller, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}
	ticket, err := loadTicket(ctx, s.tickets, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanEditTicket(caller, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	cmd := NewStatusCommand(ticket, status)
	if !cmd.Apply(ticket, s.clock.now()) {
		return ticket, nil
	}
	if err := s.tickets.UpdateStatus(ctx, ticket.ID, ticket.Status, ticket.CompletedAt); err != nil {
		cmd.Revert(ticket)
		return nil, s.moveFailure(ctx, ticket, err)
	}

	if cmd.From != cmd.To {
		if err := s.history.statusChanged(ctx, ticket.ID, optionalID(caller.ID), cmd.From, cmd.To); err != nil {
			return nil, err
		}
		s.logReopen(ticket, cmd.From)
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    callerActor(caller),
			Payload: events.TicketStatusChangedPayload{
				TicketNumber: ticket.Number,
				OldStatus:    cmd.From,
				NewStatus:    cmd.To,
				Reopened:     cmd.Reopens(),
			},
		})
	}
	return ticket, nil
}

func (s *TicketService) moveFailure(ctx context.Context, local *domain.Ticket, cause error) error {
	domainErr := apperrors.ToDomainError(cause)
	details := map[string]any{"ticket_id": local.ID}
	for k, v := range domainErr.Details {
		details[k] = v
	}

	persisted, err := s.tickets.GetByID(ctx, local.ID)
	if err != nil {
		s.logger.Warn("refetch after failed move", zap.String("ticket_id", local.ID), zap.Error(err))
		persisted = local
	}
	details["status"] = persisted.Status
	details["completed_at"] = persisted.CompletedAt

	return &apperrors.DomainError{
		Code:       domainErr.Code,
		Message:    domainErr.Message,
		HTTPStatus: domainErr.HTTPStatus,
		Details:    details,
		Err:        cause,
	}
}

func (s *TicketService) logReopen(ticket *domain.Ticket, from domain.TicketStatus) {
	if domain.IsReopen(from, ticket.Status) {
		s.logger.Info("ticket reopened",
			zap.String("ticket_id", ticket.ID),
			zap.Int64("ticket_number", ticket.Number),
			zap.String("status", string(ticket.Status)))
	}
}

// RequestInfo posts an information request visible to the requester and
// queues an email asking them to reply. Status is left alone.
func (s *TicketService) RequestInfo(ctx context.Context, caller auth.Caller, id, request string) (*domain.Comment, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, apperrors.NewValidationError("request text required", map[string]any{"field": "request"})
	}
	ticket, err := loadTicket(ctx, s.tickets, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanEditTicket(caller, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	comment := &domain.Comment{
		TicketID:      ticket.ID,
		UserID:        optionalID(caller.ID),
		Body:          "Information Requested: " + request,
		IsInfoRequest: true,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.history.commentAdded(ctx, comment); err != nil {
		return nil, err
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventInfoRequested,
		TicketID: ticket.ID,
		Actor:    callerActor(caller),
		Payload:  events.InfoRequestedPayload{Ticket: *ticket, Request: request},
	})
	return comment, nil
}

// DeleteTicket removes a ticket with its comments and history.
func (s *TicketService) DeleteTicket(ctx context.Context, caller auth.Caller, id string) error {
	ticket, err := loadTicket(ctx, s.tickets, id)
	if err != nil {
		return err
	}
	if !auth.CanDeleteTicket(caller, ticket) {
		return apperrors.NewForbidden("not allowed to delete this ticket")
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("ticket deleted",
		zap.String("ticket_id", ticket.ID),
		zap.Int64("ticket_number", ticket.Number),
		zap.String("by", caller.ID))
	return nil
}

// ListHistory returns the most recent entries, newest first.
func (s *TicketService) ListHistory(ctx context.Context, caller auth.Caller, id string) ([]domain.HistoryEntry, error) {
	if _, err := s.GetTicket(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.history.list(ctx, id, DefaultHistoryLimit)
}
