package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/events"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
)

// NotificationService turns domain events into queued emails.
type NotificationService struct {
	dispatcher  events.Dispatcher
	queue       *EmailQueueService
	departments repository.DepartmentRepository
	profiles    repository.ProfileRepository
	logger      *zap.Logger
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Dispatcher     events.Dispatcher
	Queue          *EmailQueueService
	DepartmentRepo repository.DepartmentRepository
	ProfileRepo    repository.ProfileRepository
	Logger         *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:  deps.Dispatcher,
		queue:       deps.Queue,
		departments: deps.DepartmentRepo,
		profiles:    deps.ProfileRepo,
		logger:      logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventCommentAdded, n.handleCommentAdded)
	n.dispatcher.Subscribe(events.EventInfoRequested, n.handleInfoRequested)
	n.dispatcher.Subscribe(events.EventInboundReply, n.handleInboundReply)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.logOnly)
	n.dispatcher.Subscribe(events.EventTicketPriorityChanged, n.logOnly)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.logOnly)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	ticket := payload.Ticket
	if strings.TrimSpace(ticket.RequesterEmail) == "" {
		return nil
	}
	deptName := "assigned"
	if dept, err := n.departments.GetByID(ctx, ticket.DepartmentID); err == nil {
		deptName = dept.Name
	} else {
		n.logger.Warn("confirmation without department name", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	_, err := n.queue.Enqueue(ctx, EnqueueInput{
		TicketID: strPtr(ticket.ID),
		ToEmail:  ticket.RequesterEmail,
		Subject:  fmt.Sprintf("Ticket %s Created - %s", ticket.DisplayNumber(), ticket.Title),
		Body:     confirmationBody(&ticket, deptName),
		Template: domain.TemplateTicketCreated,
	})
	return err
}

func confirmationBody(ticket *domain.Ticket, deptName string) string {
	switch ticket.CreatedVia {
	case domain.TicketSourcePublicForm:
		return fmt.Sprintf("Hello %s,\n\n"+
			"Your support ticket has been successfully created and assigned to the %s department.\n\n"+
			"Ticket Number: %s\nTitle: %s\nPriority: %s\nStatus: To Do\n\n"+
			"We will review your request and update you on its progress. You can expect a response within 24-48 hours.\n\n"+
			"Thank you for submitting your request.\n\nBest regards,\nGreat Lakes Greenhouses Support Team",
			ticket.RequesterName, deptName, ticket.DisplayNumber(), ticket.Title, ticket.Priority)
	case domain.TicketSourceEmail:
		return fmt.Sprintf("Your ticket has been successfully created and assigned to the %s department. "+
			"We will review your request and update you on its progress.\n\n"+
			"You can reply to this email to add additional information.", deptName)
	default:
		return fmt.Sprintf("Your ticket has been successfully created and assigned to the %s department. "+
			"We will review your request and update you on its progress.", deptName)
	}
}

func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommentAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.Comment.IsInternal || payload.Ticket.RequesterEmail == "" {
		return nil
	}
	_, err := n.queue.Enqueue(ctx, EnqueueInput{
		TicketID: strPtr(payload.Ticket.ID),
		ToEmail:  payload.Ticket.RequesterEmail,
		Subject:  fmt.Sprintf("New Comment on Ticket %s", payload.Ticket.DisplayNumber()),
		Body:     payload.Comment.Body,
		Template: domain.TemplateCommentAdded,
	})
	return err
}

func (n *NotificationService) handleInfoRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.InfoRequestedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.Ticket.RequesterEmail == "" {
		return nil
	}
	_, err := n.queue.Enqueue(ctx, EnqueueInput{
		TicketID: strPtr(payload.Ticket.ID),
		ToEmail:  payload.Ticket.RequesterEmail,
		Subject:  fmt.Sprintf("Information Needed for Ticket %s", payload.Ticket.DisplayNumber()),
		Body:     "We need additional information to proceed with your ticket:\n\n" + payload.Request,
		Template: domain.TemplateInfoRequested,
	})
	return err
}

// handleInboundReply tells the assignee, if any, that the requester replied.
func (n *NotificationService) handleInboundReply(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.InboundReplyPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	ticket := payload.Ticket
	if ticket.AssignedTo == nil {
		return nil
	}
	assignee, err := n.profiles.GetByID(ctx, *ticket.AssignedTo)
	if err != nil {
		return fmt.Errorf("load assignee %s: %w", *ticket.AssignedTo, err)
	}
	if assignee.Email == "" {
		return nil
	}
	_, err = n.queue.Enqueue(ctx, EnqueueInput{
		TicketID: strPtr(ticket.ID),
		ToEmail:  assignee.Email,
		Subject:  fmt.Sprintf("Reply to Ticket %s - %s", ticket.DisplayNumber(), ticket.Title),
		Body:     "The requester has replied to the ticket:\n\n" + replyText(payload.Body),
		Template: domain.TemplateCommentAdded,
	})
	return err
}

func (n *NotificationService) logOnly(_ context.Context, event events.Event) error {
	n.logger.Debug("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}
