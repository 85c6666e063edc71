package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. Profile is nil on routes
// that only require a verified identity (the public form).
type Principal struct {
	Identity
	Profile *domain.Profile
}

// Caller returns the policy view of the principal.
func (p *Principal) Caller() Caller {
	return CallerFromProfile(p.Profile)
}

// SessionResolver loads the application profile for a verified identity.
type SessionResolver interface {
	ResolveProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	sessions SessionResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, sessions SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, sessions: sessions}
}

// Handle enforces authentication and loads the caller's profile.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	identity, err := m.identify(c)
	if err != nil {
		return err
	}

	profile, err := m.sessions.ResolveProfile(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}

	c.Locals(principalKey, &Principal{Identity: *identity, Profile: profile})
	return c.Next()
}

// HandleIdentity only verifies the token. Used by the public ticket form,
// where requesters have no profile.
func (m *AuthMiddleware) HandleIdentity(c *fiber.Ctx) error {
	identity, err := m.identify(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(identity.Email) == "" {
		return apperrors.NewUnauthorized("token carries no email")
	}
	c.Locals(principalKey, &Principal{Identity: *identity})
	return c.Next()
}

func (m *AuthMiddleware) identify(c *fiber.Ctx) (*Identity, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, apperrors.NewUnauthorized("invalid authorization header")
	}

	identity, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	return identity, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
