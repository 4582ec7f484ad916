package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/repository"
)

// TestSecret signs every token minted in tests.
const TestSecret = "test-jwt-secret-key-for-testing-only"

// NewSQLite opens a migrated SQLite database in a per-test temp dir.
func NewSQLite(t *testing.T) *persistence.SQLite {
	t.Helper()

	ctx := context.Background()
	db, err := persistence.NewSQLite(ctx, config.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "auth.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(db.Close)

	if err := persistence.RunSQLiteMigrations(ctx, db.DB, zap.NewNop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// TestConfig returns a configuration suitable for testing.
func TestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:                  "auth-service-test",
			Env:                   "test",
			Host:                  "127.0.0.1",
			Port:                  "0",
			Version:               "test",
			RequestTimeoutSeconds: 5,
		},
		Store: config.StoreConfig{
			Driver:         config.StoreDriverSQLite,
			SessionBackend: config.SessionBackendStore,
		},
		Logger: config.LoggerConfig{Level: "error"},
		Auth: config.AuthConfig{
			JWTSecret:     TestSecret,
			TokenTTLHours: 168,
			BcryptCost:    bcrypt.MinCost,
		},
		Seed: config.SeedConfig{
			AdminName:     "Admin",
			AdminEmail:    "admin@example.com",
			AdminPassword: "Admin123!",
		},
	}
}

// NewTokenManager builds a token manager signed with TestSecret.
func NewTokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager(auth.TokenConfig{Secret: TestSecret})
	if err != nil {
		t.Fatalf("failed to build token manager: %v", err)
	}
	return tm
}

// UserBuilder creates test users with a builder pattern.
type UserBuilder struct {
	name     string
	email    string
	password string
	role     domain.Role
}

// NewUserBuilder creates a new UserBuilder with default values.
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		name:     fmt.Sprintf("Test User %s", suffix),
		email:    fmt.Sprintf("user_%s@example.com", suffix),
		password: "testpassword123",
		role:     domain.RoleUser,
	}
}

// WithName sets the display name.
func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.name = name
	return b
}

// WithEmail sets the email; it is normalized before storage.
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

// WithPassword sets the password.
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// WithRole sets the role.
func (b *UserBuilder) WithRole(role domain.Role) *UserBuilder {
	b.role = role
	return b
}

// Build stores the user and returns it with the raw password.
func (b *UserBuilder) Build(t *testing.T, users repository.UserRepository) (*domain.User, string) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		Name:         b.name,
		Email:        domain.NormalizeEmail(b.email),
		PasswordHash: string(hashed),
		Role:         b.role,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user, b.password
}
