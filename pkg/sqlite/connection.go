package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

// Open opens an embedded SQLite database. In-memory databases are pinned to a
// single connection so every query sees the same data.
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	log.Printf("Opened SQLite database: %s", dsn)
	return db, nil
}

var ordinal = regexp.MustCompile(`\$\d+`)

// Rebind rewrites Postgres-style $N placeholders to SQLite's "?". Callers must
// reference each argument once, in order.
func Rebind(query string) string {
	return ordinal.ReplaceAllString(query, "?")
}
