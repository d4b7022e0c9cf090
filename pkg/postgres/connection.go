package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/lib/pq"
)

// UniqueViolation is the SQLSTATE Postgres reports for duplicate keys.
const UniqueViolation = "23505"

// Connect establishes a connection to PostgreSQL with retries.
func Connect(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := backoff.Retry(ctx, func() (*sql.DB, error) {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(2*time.Second)),
		backoff.WithMaxTries(30),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("Failed to ping database: %v, retrying in %s...", err, next)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	log.Println("Connected to PostgreSQL")
	return db, nil
}

// IsUniqueViolation reports whether err is a Postgres duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == UniqueViolation
	}
	return false
}
