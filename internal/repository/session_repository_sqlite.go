package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/spec-kit/auth-service/internal/domain"
)

type sqliteSessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSessionRepository constructs a SQLite-backed repository.
func NewSQLiteSessionRepository(db *sql.DB) SessionRepository {
	return &sqliteSessionRepository{db: db, now: time.Now}
}

func (r *sqliteSessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	const query = `
        INSERT INTO sessions (id, user_id, token, expires_at, created_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		toMillis(session.ExpiresAt),
		toMillis(r.now()),
	)
	return err
}

func (r *sqliteSessionRepository) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	const query = `
        SELECT id, user_id, token, expires_at, created_at
        FROM sessions WHERE id = ?`
	var (
		session   domain.Session
		expiresAt int64
		createdAt int64
	)
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&expiresAt,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	session.ExpiresAt = fromMillis(expiresAt)
	session.CreatedAt = fromMillis(createdAt)
	return &session, nil
}

func (r *sqliteSessionRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}
