package postgres

import (
	"database/sql"
	"log"
)

// RunMigrations executes database migrations. The DDL sticks to the subset
// shared by Postgres and SQLite so the embedded projection store reuses it.
func RunMigrations(db *sql.DB, service string) error {
	migrations := getServiceMigrations(service)
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Printf("Migrations completed for service: %s", service)
	return nil
}

func getServiceMigrations(service string) []string {
	users := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	views := []string{
		`CREATE TABLE IF NOT EXISTS user_views (
			user_id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			last_updated TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_views_username ON user_views (username)`,
		`CREATE INDEX IF NOT EXISTS idx_user_views_status ON user_views (status)`,
	}

	switch service {
	case "api":
		return users
	case "projection":
		return views
	default:
		return append(users, views...)
	}
}
