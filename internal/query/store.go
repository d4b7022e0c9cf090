package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lizhaowen72/eventbridge/pkg/models"
	"github.com/lizhaowen72/eventbridge/pkg/postgres"
	"github.com/lizhaowen72/eventbridge/pkg/sqlite"
)

// ErrViewNotFound is returned when no projection row matches.
var ErrViewNotFound = errors.New("user view not found")

// ViewStore is the projection row store. Mutations are conditional so that
// concurrent deliveries never overwrite each other's fields; each reports
// whether a row was changed.
type ViewStore interface {
	Find(ctx context.Context, userID string) (models.UserView, error)
	FindByUsername(ctx context.Context, username string) (models.UserView, error)
	List(ctx context.Context) ([]models.UserView, error)
	ListByStatus(ctx context.Context, status models.UserStatus) ([]models.UserView, error)
	Exists(ctx context.Context, userID string) (bool, error)
	Insert(ctx context.Context, v models.UserView) (bool, error)
	UpdateEmail(ctx context.Context, userID, email string, at time.Time) (bool, error)
	Deactivate(ctx context.Context, userID string, at time.Time) (bool, error)
	Delete(ctx context.Context, userID string) error
}

// SQLViewStore keeps projection rows in the user_views table of Postgres or
// SQLite.
type SQLViewStore struct {
	DB     *sql.DB
	rebind func(string) string
}

// NewPostgresViewStore creates a store over a lib/pq database.
func NewPostgresViewStore(db *sql.DB) *SQLViewStore {
	return &SQLViewStore{DB: db, rebind: func(q string) string { return q }}
}

// NewSQLiteViewStore creates a store over a modernc.org/sqlite database.
func NewSQLiteViewStore(db *sql.DB) *SQLViewStore {
	return &SQLViewStore{DB: db, rebind: sqlite.Rebind}
}

const viewColumns = "user_id, username, email, status, created_at, last_updated"

// Find returns the row for userID or ErrViewNotFound.
func (s *SQLViewStore) Find(ctx context.Context, userID string) (models.UserView, error) {
	row := s.DB.QueryRowContext(ctx,
		s.rebind("SELECT "+viewColumns+" FROM user_views WHERE user_id = $1"), userID)
	return scanView(row)
}

// FindByUsername returns the oldest row with the given username.
func (s *SQLViewStore) FindByUsername(ctx context.Context, username string) (models.UserView, error) {
	row := s.DB.QueryRowContext(ctx,
		s.rebind("SELECT "+viewColumns+" FROM user_views WHERE username = $1 ORDER BY created_at ASC LIMIT 1"), username)
	return scanView(row)
}

// List returns every row, newest first.
func (s *SQLViewStore) List(ctx context.Context) ([]models.UserView, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+viewColumns+" FROM user_views ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list user views: %w", err)
	}
	return collectViews(rows)
}

// ListByStatus returns the rows with the given status, newest first.
func (s *SQLViewStore) ListByStatus(ctx context.Context, status models.UserStatus) ([]models.UserView, error) {
	rows, err := s.DB.QueryContext(ctx,
		s.rebind("SELECT "+viewColumns+" FROM user_views WHERE status = $1 ORDER BY created_at DESC"), string(status))
	if err != nil {
		return nil, fmt.Errorf("list user views by status: %w", err)
	}
	return collectViews(rows)
}

// Exists reports whether a row exists for userID.
func (s *SQLViewStore) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		s.rebind("SELECT EXISTS(SELECT 1 FROM user_views WHERE user_id = $1)"), userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user view %s: %w", userID, err)
	}
	return exists, nil
}

// Insert adds a row. It returns false without error when a row with the same
// user id already exists.
func (s *SQLViewStore) Insert(ctx context.Context, v models.UserView) (bool, error) {
	res, err := s.DB.ExecContext(ctx, s.rebind(
		`INSERT INTO user_views (`+viewColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO NOTHING`),
		v.UserID, v.Username, v.Email, string(v.Status), v.CreatedAt, v.LastUpdated,
	)
	if postgres.IsUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert user view %s: %w", v.UserID, err)
	}
	return changed(res)
}

// UpdateEmail sets the email unless it already has that value.
func (s *SQLViewStore) UpdateEmail(ctx context.Context, userID, email string, at time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx, s.rebind(
		`UPDATE user_views SET email = $1, last_updated = $2
		 WHERE user_id = $3 AND email <> $4`),
		email, at, userID, email,
	)
	if err != nil {
		return false, fmt.Errorf("update user view email %s: %w", userID, err)
	}
	return changed(res)
}

// Deactivate sets the status to Inactive unless it already is.
func (s *SQLViewStore) Deactivate(ctx context.Context, userID string, at time.Time) (bool, error) {
	inactive := string(models.UserStatusInactive)
	res, err := s.DB.ExecContext(ctx, s.rebind(
		`UPDATE user_views SET status = $1, last_updated = $2
		 WHERE user_id = $3 AND status <> $4`),
		inactive, at, userID, inactive,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate user view %s: %w", userID, err)
	}
	return changed(res)
}

// Delete removes the row for userID; a missing row is not an error.
func (s *SQLViewStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.DB.ExecContext(ctx, s.rebind("DELETE FROM user_views WHERE user_id = $1"), userID); err != nil {
		return fmt.Errorf("delete user view %s: %w", userID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanView(row scanner) (models.UserView, error) {
	var (
		v      models.UserView
		status string
	)
	err := row.Scan(&v.UserID, &v.Username, &v.Email, &status, &v.CreatedAt, &v.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserView{}, ErrViewNotFound
	}
	if err != nil {
		return models.UserView{}, fmt.Errorf("scan user view: %w", err)
	}
	v.Status = models.UserStatus(status)
	return v, nil
}

func collectViews(rows *sql.Rows) ([]models.UserView, error) {
	defer rows.Close()

	views := []models.UserView{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user views: %w", err)
	}
	return views, nil
}

func changed(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
