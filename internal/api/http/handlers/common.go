package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/greatlakes/greenhouse-tickets/internal/api/dto"
	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func callerFrom(c *fiber.Ctx) (auth.Caller, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Profile == nil {
		return auth.Caller{}, apperrors.NewUnauthorized("profile required")
	}
	return principal.Caller(), nil
}

func identityFrom(c *fiber.Ctx) (auth.Identity, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.UserID == "" {
		return auth.Identity{}, apperrors.NewUnauthorized("sign-in required")
	}
	return principal.Identity, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// pagination converts page/page_size query params into limit and offset.
func pagination(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, (page - 1) * pageSize
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:             t.ID,
		Number:         t.Number,
		Title:          t.Title,
		Description:    t.Description,
		Priority:       t.Priority,
		Status:         t.Status,
		DepartmentID:   t.DepartmentID,
		AssignedTo:     t.AssignedTo,
		RequesterName:  t.RequesterName,
		RequesterEmail: t.RequesterEmail,
		RequesterPhone: t.RequesterPhone,
		CreatedVia:     t.CreatedVia,
		CreatedBy:      t.CreatedBy,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		CompletedAt:    t.CompletedAt,
	}
}

func commentResponses(comments []domain.Comment) []dto.CommentResponse {
	out := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, commentResponse(&comments[i]))
	}
	return out
}

func commentResponse(c *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:            c.ID,
		TicketID:      c.TicketID,
		UserID:        c.UserID,
		Body:          c.Body,
		IsInternal:    c.IsInternal,
		IsInfoRequest: c.IsInfoRequest,
		CreatedAt:     c.CreatedAt,
	}
}

func historyResponse(e *domain.HistoryEntry) dto.HistoryResponse {
	return dto.HistoryResponse{
		ID:        e.ID,
		UserID:    e.UserID,
		Action:    e.Action,
		FieldName: e.FieldName,
		OldValue:  e.OldValue,
		NewValue:  e.NewValue,
		CreatedAt: e.CreatedAt,
	}
}

// parseTicketNumber reads the :number param; a leading "#" is accepted.
func parseTicketNumber(c *fiber.Ctx) (int64, error) {
	raw := strings.TrimPrefix(c.Params("number"), "#")
	number, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || number <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket number", map[string]any{"number": c.Params("number")})
	}
	return number, nil
}
