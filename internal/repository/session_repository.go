package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auth-service/internal/domain"
)

// SessionRepository keeps optional bookkeeping of issued tokens. Upsert is
// keyed by session id: when the id already exists the call is a no-op.
type SessionRepository interface {
	Upsert(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id int64) (*domain.Session, error)
	DeleteByUserID(ctx context.Context, userID int64) error
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository constructs a Postgres-backed repository.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	const query = `
        INSERT INTO sessions (id, user_id, token, expires_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		session.ExpiresAt,
	)
	return err
}

func (r *sessionRepository) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	const query = `
        SELECT id, user_id, token, expires_at, created_at
        FROM sessions WHERE id=$1`
	var session domain.Session
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.ExpiresAt,
		&session.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id=$1`, userID)
	return err
}
