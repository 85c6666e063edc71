package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/events"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets    repository.TicketRepository
	profiles   repository.ProfileRepository
	history    historyLedger
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	ProfileRepo repository.ProfileRepository
	HistoryRepo repository.HistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		profiles:   deps.ProfileRepo,
		history:    historyLedger{repo: deps.HistoryRepo},
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// AssignTicket sets or clears the ticket's assignee. A nil assigneeID
// unassigns the ticket.
func (s *AssignmentService) AssignTicket(ctx context.Context, caller auth.Caller, ticketID string, assigneeID *string) (*domain.Ticket, error) {
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanReassignTicket(caller, ticket) {
		return nil, apperrors.NewForbidden("not allowed to reassign this ticket")
	}
	if assigneeID != nil {
		if err := s.CheckAssignee(ctx, caller, ticket.DepartmentID, *assigneeID); err != nil {
			return nil, err
		}
	}
	if sameOptional(ticket.AssignedTo, assigneeID) {
		return ticket, nil
	}

	oldAssignee := ticket.AssignedTo
	ticket.AssignedTo = assigneeID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.history.assigneeChanged(ctx, ticket.ID, optionalID(caller.ID), oldAssignee, assigneeID); err != nil {
		return nil, err
	}
	s.publishAssignmentEvent(ctx, caller, ticket, oldAssignee)
	return ticket, nil
}

// CheckAssignee verifies assigneeID may hold tickets of departmentID.
// Only global admins may assign outside the ticket's department.
func (s *AssignmentService) CheckAssignee(ctx context.Context, caller auth.Caller, departmentID, assigneeID string) error {
	assignee, err := s.profiles.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("profile", map[string]any{"profile_id": assigneeID})
		}
		return apperrors.MapError(err)
	}
	if auth.IsGlobalAdmin(caller.Role) {
		return nil
	}
	if !profileMatchesDepartment(assignee, departmentID) {
		return apperrors.NewForbidden("assignee outside ticket department")
	}
	return nil
}

func profileMatchesDepartment(p *domain.Profile, departmentID string) bool {
	return p != nil && p.DepartmentID != nil && *p.DepartmentID == departmentID
}

func (s *AssignmentService) publishAssignmentEvent(ctx context.Context, caller auth.Caller, ticket *domain.Ticket, oldAssignee *string) {
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    callerActor(caller),
		Payload: events.TicketAssignedPayload{
			TicketNumber: ticket.Number,
			OldAssignee:  oldAssignee,
			NewAssignee:  ticket.AssignedTo,
		},
	})
}
