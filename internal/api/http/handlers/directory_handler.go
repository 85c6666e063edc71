package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/greatlakes/greenhouse-tickets/internal/api/dto"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/service"
)

// DirectoryHandler exposes departments and operator profiles.
type DirectoryHandler struct {
	profiles *service.ProfileService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(profiles *service.ProfileService) *DirectoryHandler {
	return &DirectoryHandler{profiles: profiles}
}

// ListDepartments GET /api/departments.
func (h *DirectoryHandler) ListDepartments(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	departments, err := h.profiles.ListDepartments(c.UserContext(), caller)
	if err != nil {
		return err
	}
	items := make([]dto.DepartmentResponse, 0, len(departments))
	for _, d := range departments {
		items = append(items, dto.DepartmentResponse{ID: d.ID, Name: d.Name, Email: d.Email})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListProfiles GET /api/profiles.
func (h *DirectoryHandler) ListProfiles(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	filter := service.ProfileListFilter{DepartmentID: optionalQuery(c, "department_id")}
	if role := optionalQuery(c, "role"); role != nil {
		r := domain.Role(*role)
		filter.Role = &r
	}
	filter.Limit, filter.Offset = pagination(c)

	profiles, err := h.profiles.ListProfiles(c.UserContext(), caller, filter)
	if err != nil {
		return err
	}
	items := make([]dto.ProfileResponse, 0, len(profiles))
	for i := range profiles {
		items = append(items, profileResponse(&profiles[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateRole PATCH /api/profiles/:id/role.
func (h *DirectoryHandler) UpdateRole(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	profile, err := h.profiles.UpdateRole(c.UserContext(), caller, c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profileResponse(profile)})
}

// DeleteProfile DELETE /api/profiles/:id.
func (h *DirectoryHandler) DeleteProfile(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	if err := h.profiles.DeleteProfile(c.UserContext(), caller, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func profileResponse(p *domain.Profile) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:           p.ID,
		Email:        p.Email,
		FullName:     p.FullName,
		Role:         p.Role,
		DepartmentID: p.DepartmentID,
		CreatedAt:    p.CreatedAt,
	}
}

// EmailQueueHandler exposes manual queue operations.
type EmailQueueHandler struct {
	queue *service.EmailQueueService
}

// NewEmailQueueHandler constructs handler.
func NewEmailQueueHandler(queue *service.EmailQueueService) *EmailQueueHandler {
	return &EmailQueueHandler{queue: queue}
}

// Retry POST /api/email-queue/:id/retry.
func (h *EmailQueueHandler) Retry(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	email, err := h.queue.Retry(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.OutboundEmailResponse{
		ID:        email.ID,
		TicketID:  email.TicketID,
		ToEmail:   email.ToEmail,
		Subject:   email.Subject,
		Template:  email.Template,
		Status:    email.Status,
		Attempts:  email.Attempts,
		LastError: email.LastError,
		SentAt:    email.SentAt,
		CreatedAt: email.CreatedAt,
	}})
}
