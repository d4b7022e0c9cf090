package query

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lizhaowen72/eventbridge/pkg/models"
	"github.com/lizhaowen72/eventbridge/pkg/postgres"
	"github.com/lizhaowen72/eventbridge/pkg/sqlite"
)

func newMockStore(t *testing.T) (*SQLViewStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresViewStore(db), mock
}

func newSQLiteStore(t *testing.T) *SQLViewStore {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, postgres.RunMigrations(db, "projection"))
	return NewSQLiteViewStore(db)
}

func TestPostgresFindNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_views WHERE user_id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Find(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrViewNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindScansRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"user_id", "username", "email", "status", "created_at", "last_updated"}).
		AddRow("u1", "alice", "alice@example.com", "ACTIVE", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_views WHERE user_id = $1")).WithArgs("u1").WillReturnRows(rows)

	v, err := store.Find(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, "alice", v.Username)
	assert.Equal(t, models.UserStatusActive, v.Status)
}

func TestPostgresInsertConflictIsNotAnError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := store.Insert(context.Background(), models.UserView{UserID: "u1", Status: models.UserStatusActive})

	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestPostgresInsertUniqueViolationIsNotAnError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_views")).
		WillReturnError(&pq.Error{Code: postgres.UniqueViolation})

	inserted, err := store.Insert(context.Background(), models.UserView{UserID: "u1"})

	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestPostgresDeactivateIsConditional(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("WHERE user_id = $3 AND status <> $4")).
		WithArgs("INACTIVE", sqlmock.AnyArg(), "u1", "INACTIVE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := store.Deactivate(context.Background(), "u1", time.Now())

	require.NoError(t, err)
	assert.True(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	inserted, err := store.Insert(ctx, models.UserView{
		UserID: "u1", Username: "alice", Email: "a@x", Status: models.UserStatusActive,
		CreatedAt: created, LastUpdated: created,
	})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Insert(ctx, models.UserView{UserID: "u1", Username: "other", Status: models.UserStatusActive})
	require.NoError(t, err)
	assert.False(t, inserted)

	exists, err := store.Exists(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, exists)

	updated, err := store.UpdateEmail(ctx, "u1", "b@x", created.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, updated)
	updated, err = store.UpdateEmail(ctx, "u1", "b@x", created.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, updated)

	v, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "b@x", v.Email)
	assert.True(t, v.CreatedAt.Equal(created))
	assert.True(t, v.LastUpdated.Equal(created.Add(time.Minute)))

	updated, err = store.Deactivate(ctx, "u1", created.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, updated)

	active, err := store.ListByStatus(ctx, models.UserStatusActive)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.UserStatusInactive, all[0].Status)

	require.NoError(t, store.Delete(ctx, "u1"))
	require.NoError(t, store.Delete(ctx, "u1"))
	_, err = store.Find(ctx, "u1")
	assert.ErrorIs(t, err, ErrViewNotFound)
}

func TestOpenStoreSQLite(t *testing.T) {
	store, db, err := OpenStore(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	exists, err := store.Exists(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}
