package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// UserRepository persists user aggregates.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	Save(ctx context.Context, u *User) error
}

// SQLUserRepository stores users in the Postgres users table.
type SQLUserRepository struct {
	DB *sql.DB
}

// NewSQLUserRepository creates a repository over db.
func NewSQLUserRepository(db *sql.DB) *SQLUserRepository {
	return &SQLUserRepository{DB: db}
}

// FindByID loads a user or returns ErrUserNotFound.
func (r *SQLUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	var (
		userID, username, email, status string
		createdAt                       time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, username, email, status, created_at FROM users WHERE id = $1", id).
		Scan(&userID, &username, &email, &status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return RestoreUser(userID, username, email, models.UserStatus(status), createdAt), nil
}

// Save inserts or updates the user row. The id is never changed.
func (r *SQLUserRepository) Save(ctx context.Context, u *User) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, username, email, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, status = EXCLUDED.status`,
		u.id, u.username, u.email, string(u.status), u.createdAt,
	)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.id, err)
	}
	return nil
}
