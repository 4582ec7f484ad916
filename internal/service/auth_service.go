package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgUserNotFound       = "User not found"
	msgEmailInUse         = "Email already in use"
)

// AuthService coordinates registration, login and user lookup flows.
// It does not authorize by caller identity; any verified token may reach it.
type AuthService struct {
	users          repository.UserRepository
	sessions       repository.SessionRepository
	hasher         *auth.PasswordHasher
	tokens         *auth.TokenManager
	recordSessions bool
	dispatcher     events.Dispatcher
	logger         *zap.Logger
}

// AuthDependencies encapsulates the collaborators of the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Hasher      *auth.PasswordHasher
	Tokens      *auth.TokenManager
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	// RecordSessions writes a bookkeeping session after each issuance.
	// It requires SessionRepo.
	RecordSessions bool
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:          deps.UserRepo,
		sessions:       deps.SessionRepo,
		hasher:         deps.Hasher,
		tokens:         deps.Tokens,
		recordSessions: deps.RecordSessions && deps.SessionRepo != nil,
		dispatcher:     deps.Dispatcher,
		logger:         logger.Named("auth"),
	}
}

// RegisterInput carries the registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput carries the login request.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is returned by register and login. It never carries the password hash.
type AuthResult struct {
	User      domain.PublicUser
	Token     string
	ExpiresAt time.Time
}

// Register creates a user account and issues its first token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	email := domain.NormalizeEmail(input.Email)

	details := map[string]any{}
	if name == "" {
		details["name"] = "required"
	}
	if email == "" {
		details["email"] = "required"
	} else if !validEmail(email) {
		details["email"] = "must be a valid email address"
	}
	if input.Password == "" {
		details["password"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewInvalidInput("invalid registration request", details)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperrors.NewInvalidInput("invalid registration request", map[string]any{
				"password": "must be at most 72 bytes",
			})
		}
		return nil, s.internal(ctx, "Failed to create user", "hash password", err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict(msgEmailInUse, nil)
		}
		return nil, s.internal(ctx, "Failed to create user", "create user", err)
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, s.internal(ctx, "Failed to create user", "issue token", err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{Email: user.Email})
	return result, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password yield the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := domain.NormalizeEmail(input.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized(msgInvalidCredentials)
		}
		return nil, s.internal(ctx, "Failed to login", "lookup user", err)
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return nil, s.internal(ctx, "Failed to login", "verify password", err)
	}
	if !ok {
		return nil, apperrors.NewUnauthorized(msgInvalidCredentials)
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, s.internal(ctx, "Failed to login", "issue token", err)
	}
	return result, nil
}

// GetAllUsers lists every user.
func (s *AuthService) GetAllUsers(ctx context.Context) ([]domain.PublicUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, s.internal(ctx, "Failed to fetch users", "list users", err)
	}

	out := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// GetUserByID returns a single user.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*domain.PublicUser, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound(msgUserNotFound)
		}
		return nil, s.internal(ctx, "Failed to fetch user", "get user", err)
	}
	public := user.Public()
	return &public, nil
}

// DeleteUser removes a user and returns the deleted record.
func (s *AuthService) DeleteUser(ctx context.Context, id int64) (*domain.PublicUser, error) {
	user, err := s.users.DeleteByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound(msgUserNotFound)
		}
		return nil, s.internal(ctx, "Failed to delete user", "delete user", err)
	}

	fields := []zap.Field{zap.Int64("user_id", user.ID)}
	if actor, ok := auth.IdentityFromContext(ctx); ok {
		fields = append(fields, zap.Int64("actor_id", actor.ID))
	}
	s.logger.Info("user deleted", fields...)
	s.publish(ctx, events.EventUserDeleted, user.ID, events.UserDeletedPayload{Email: user.Email})

	public := user.Public()
	return &public, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(auth.Identity{ID: user.ID, Email: user.Email})
	if err != nil {
		return nil, err
	}

	if s.recordSessions {
		session := &domain.Session{ID: user.ID, UserID: user.ID, Token: token, ExpiresAt: expiresAt}
		if err := s.sessions.Upsert(ctx, session); err != nil {
			s.logger.Warn("session bookkeeping failed", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}

	return &AuthResult{User: user.Public(), Token: token, ExpiresAt: expiresAt}, nil
}

// publish emits a domain event. Subscriber failures never fail the request.
func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID int64, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if actor, ok := auth.IdentityFromContext(ctx); ok {
		actorID := actor.ID
		event.ActorID = &actorID
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

// internal logs err once and returns a generic failure for the caller.
func (s *AuthService) internal(ctx context.Context, message, op string, err error) error {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if actor, ok := auth.IdentityFromContext(ctx); ok {
		fields = append(fields, zap.Int64("actor_id", actor.ID))
	}
	s.logger.Error(message, fields...)
	return apperrors.NewInternal(message, err)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
