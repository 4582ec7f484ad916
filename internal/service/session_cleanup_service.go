package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
)

// SessionCleanupService purges session bookkeeping for deleted users. The
// relational stores already cascade; the Redis backend relies on this.
type SessionCleanupService struct {
	dispatcher events.Dispatcher
	sessions   repository.SessionRepository
	logger     *zap.Logger
}

// NewSessionCleanupService creates the service.
func NewSessionCleanupService(dispatcher events.Dispatcher, sessions repository.SessionRepository, logger *zap.Logger) *SessionCleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionCleanupService{
		dispatcher: dispatcher,
		sessions:   sessions,
		logger:     logger.Named("sessions"),
	}
}

// RegisterHandlers subscribes to events.
func (s *SessionCleanupService) RegisterHandlers() {
	if s.dispatcher == nil || s.sessions == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventUserDeleted, s.handleUserDeleted)
}

func (s *SessionCleanupService) handleUserDeleted(ctx context.Context, event events.Event) error {
	if err := s.sessions.DeleteByUserID(ctx, event.UserID); err != nil {
		s.logger.Warn("session cleanup failed", zap.Int64("user_id", event.UserID), zap.Error(err))
		return err
	}
	s.logger.Debug("sessions purged", zap.Int64("user_id", event.UserID))
	return nil
}
