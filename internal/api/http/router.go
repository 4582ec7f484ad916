package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	// UsersGuard, when set, runs after authentication on the user management routes.
	UsersGuard fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	requireAuth := cfg.AuthMiddleware.Handle
	authGroup.Get("/me", requireAuth, cfg.Users.Me)

	users := []fiber.Handler{requireAuth}
	if cfg.UsersGuard != nil {
		users = append(users, cfg.UsersGuard)
	}
	authGroup.Get("/users", append(users, cfg.Users.List)...)
	authGroup.Get("/users/:id", append(users, cfg.Users.Get)...)
	authGroup.Delete("/users/:id", append(users, cfg.Users.Delete)...)
}
