package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const identityKey = "auth_identity"

type identityContextKey struct{}

// ContextWithIdentity returns a copy of ctx carrying the verified identity.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the identity attached by the gateway.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}

// AuthMiddleware validates bearer tokens. It never loads the user record;
// the identity comes from the token alone.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	identity, err := m.tokens.VerifyIdentity(token)
	if err != nil {
		return apperrors.NewUnauthenticated("invalid or expired token")
	}

	c.Locals(identityKey, identity)
	c.SetUserContext(ContextWithIdentity(c.UserContext(), identity))
	return c.Next()
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthenticated("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.NewUnauthenticated("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", apperrors.NewUnauthenticated("invalid authorization header")
	}
	return token, nil
}

// IdentityFromCtx retrieves the authenticated identity from fiber locals.
func IdentityFromCtx(c *fiber.Ctx) (Identity, bool) {
	identity, ok := c.Locals(identityKey).(Identity)
	return identity, ok
}
