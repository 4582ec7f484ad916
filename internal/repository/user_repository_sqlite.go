package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/spec-kit/auth-service/internal/domain"
)

type sqliteUserRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteUserRepository returns a SQLite-backed implementation. Timestamps
// are stored as UTC unix milliseconds.
func NewSQLiteUserRepository(db *sql.DB) UserRepository {
	return &sqliteUserRepository{db: db, now: time.Now}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (r *sqliteUserRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        RETURNING id, created_at, updated_at`

	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	now := toMillis(r.now())
	err := r.scanWrite(r.db.QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		now,
		now,
	), user)
	if isSQLiteUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *sqliteUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanSQLiteUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanSQLiteUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *sqliteUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *sqliteUserRepository) DeleteByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `DELETE FROM users WHERE id = ? RETURNING ` + userColumns
	return scanSQLiteUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteUserRepository) UpsertByEmail(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (email) DO UPDATE
        SET name=excluded.name, password_hash=excluded.password_hash, role=excluded.role, updated_at=excluded.updated_at
        RETURNING id, created_at, updated_at`

	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	now := toMillis(r.now())
	return r.scanWrite(r.db.QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		now,
		now,
	), user)
}

func (r *sqliteUserRepository) scanWrite(row *sql.Row, user *domain.User) error {
	var createdAt, updatedAt int64
	if err := row.Scan(&user.ID, &createdAt, &updatedAt); err != nil {
		return err
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(row rowScanner) (*domain.User, error) {
	var (
		user      domain.User
		role      string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.Role = domain.Role(role)
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return &user, nil
}
