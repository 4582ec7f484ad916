package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
)

// SeedSessionTTL is the lifetime of the bookkeeping session written for the seeded admin.
const SeedSessionTTL = 7 * 24 * time.Hour

// SeedAdminInput describes the bootstrap administrator.
type SeedAdminInput struct {
	Name     string
	Email    string
	Password string
}

// Seeder writes bootstrap records outside the public API.
type Seeder struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	hasher   *auth.PasswordHasher
	logger   *zap.Logger
	now      func() time.Time
}

// NewSeeder constructs a seeder. sessions may be nil.
func NewSeeder(users repository.UserRepository, sessions repository.SessionRepository, hasher *auth.PasswordHasher, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger.Named("seed"),
		now:      time.Now,
	}
}

// SeedAdmin creates or updates the admin keyed by email, then records a seed
// session. Session failures are logged and ignored.
func (s *Seeder) SeedAdmin(ctx context.Context, input SeedAdminInput) (domain.PublicUser, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" || !validEmail(email) {
		return domain.PublicUser{}, fmt.Errorf("seed admin email %q is invalid", input.Email)
	}
	if input.Password == "" {
		return domain.PublicUser{}, fmt.Errorf("seed admin password is required")
	}
	name := input.Name
	if name == "" {
		name = "Admin"
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("hash admin password: %w", err)
	}

	admin := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	}
	if err := s.users.UpsertByEmail(ctx, admin); err != nil {
		return domain.PublicUser{}, fmt.Errorf("upsert admin: %w", err)
	}

	if s.sessions != nil {
		now := s.now()
		session := &domain.Session{
			ID:        admin.ID,
			UserID:    admin.ID,
			Token:     fmt.Sprintf("seed-token-%d-%d", admin.ID, now.UnixMilli()),
			ExpiresAt: now.Add(SeedSessionTTL),
		}
		if err := s.sessions.Upsert(ctx, session); err != nil {
			s.logger.Warn("seed session not recorded", zap.Int64("user_id", admin.ID), zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.Int64("user_id", admin.ID),
		zap.String("email", admin.Email),
		zap.String("role", string(admin.Role)),
	}
	if cost, err := auth.HashCost(hash); err == nil {
		fields = append(fields, zap.Int("bcrypt_cost", cost))
	}
	s.logger.Info("seed complete", fields...)
	return admin.Public(), nil
}
