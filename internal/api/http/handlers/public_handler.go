package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/greatlakes/greenhouse-tickets/internal/api/dto"
	"github.com/greatlakes/greenhouse-tickets/internal/service"
)

// PublicHandler serves requesters signed in through the public form.
type PublicHandler struct {
	tickets  *service.TicketService
	comments *service.CommentService
}

// NewPublicHandler constructs handler.
func NewPublicHandler(tickets *service.TicketService, comments *service.CommentService) *PublicHandler {
	return &PublicHandler{tickets: tickets, comments: comments}
}

// CreateTicket POST /public/tickets.
func (h *PublicHandler) CreateTicket(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.PublicTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.CreatePublicTicket(c.UserContext(), identity, service.PublicTicketInput{
		DepartmentID:   req.DepartmentID,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		RequesterName:  req.RequesterName,
		RequesterPhone: req.RequesterPhone,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"id":            ticket.ID,
		"ticket_number": ticket.Number,
		"status":        ticket.Status,
	}})
}

// GetTicket GET /public/tickets/:number.
func (h *PublicHandler) GetTicket(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	number, err := parseTicketNumber(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetPublicTicket(c.UserContext(), identity, number)
	if err != nil {
		return err
	}
	comments, err := h.comments.ListPublicComments(c.UserContext(), ticket)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PublicTicketResponse{
		Number:      ticket.Number,
		Title:       ticket.Title,
		Description: ticket.Description,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
		CreatedAt:   ticket.CreatedAt,
		CompletedAt: ticket.CompletedAt,
		Comments:    commentResponses(comments),
	}})
}
