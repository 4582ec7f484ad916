package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// UserLookup resolves the stored user behind an identity. Tokens carry no
// role, so role checks need the record.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// RequireRole ensures the authenticated caller holds one of the allowed roles.
// It must run after AuthMiddleware.Handle.
func RequireRole(users UserLookup, allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromCtx(c)
		if !ok {
			return apperrors.NewUnauthenticated("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}

		user, err := users.GetByID(c.UserContext(), identity.ID)
		if err != nil || user == nil {
			// A token whose user is gone grants nothing.
			return apperrors.NewForbidden("insufficient role")
		}
		if _, exists := allowedSet[user.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
