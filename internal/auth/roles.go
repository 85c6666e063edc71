package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// RequireProfile ensures the caller has an application profile.
func RequireProfile() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Profile == nil {
			return apperrors.NewUnauthorized("profile required")
		}
		return c.Next()
	}
}

// RequireGlobalAdmin ensures the caller is a global admin.
func RequireGlobalAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Profile == nil {
			return apperrors.NewUnauthorized("profile required")
		}
		if !IsGlobalAdmin(principal.Profile.Role) {
			return apperrors.NewForbidden("global admin role required")
		}
		return c.Next()
	}
}

// RequireAnyAdmin ensures the caller is a global or department admin.
func RequireAnyAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Profile == nil {
			return apperrors.NewUnauthorized("profile required")
		}
		if !IsAnyAdmin(principal.Profile.Role) {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}
