package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lizhaowen72/eventbridge/pkg/postgres"
	"github.com/lizhaowen72/eventbridge/pkg/sqlite"
)

// OpenStore connects to the projection database for driver ("postgres" or
// "sqlite"), runs the projection migrations and returns the store. The caller
// closes the returned *sql.DB.
func OpenStore(ctx context.Context, driver, dsn string) (*SQLViewStore, *sql.DB, error) {
	var (
		db    *sql.DB
		err   error
		store func(*sql.DB) *SQLViewStore
	)
	switch driver {
	case "postgres":
		db, err = postgres.Connect(ctx, dsn)
		store = NewPostgresViewStore
	case "sqlite":
		db, err = sqlite.Open(dsn)
		store = NewSQLiteViewStore
	default:
		return nil, nil, fmt.Errorf("unknown projection driver %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := postgres.RunMigrations(db, "projection"); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("projection migrations: %w", err)
	}
	return store(db), db, nil
}
