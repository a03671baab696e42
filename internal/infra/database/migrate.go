package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

type dialect struct {
	name      string
	timestamp string
}

var (
	postgresDialect = dialect{name: "postgres", timestamp: "TIMESTAMPTZ"}
	sqliteDialect   = dialect{name: "sqlite", timestamp: "DATETIME"}
)

var dollarParam = regexp.MustCompile(`\$\d+`)

// rebind turns $n placeholders into ? for SQLite. Every statement in this
// package uses each $n once and in ascending order.
func (d dialect) rebind(query string) string {
	if d.name != sqliteDialect.name {
		return query
	}
	return dollarParam.ReplaceAllString(query, "?")
}

// sqlDB rebinds every statement for its dialect before running it.
type sqlDB struct {
	*sql.DB
	dialect dialect
}

func (db sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.dialect.rebind(query), args...)
}

func (db sqlDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.dialect.rebind(query), args...)
}

func (db sqlDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.dialect.rebind(query), args...)
}

// Records are kept as TEXT rather than JSONB so a stored record reads back
// byte for byte.
func (d dialect) statements() []string {
	ts := d.timestamp
	return []string{
		`CREATE TABLE IF NOT EXISTS leads (
			lead_id TEXT PRIMARY KEY,
			lead_type TEXT NOT NULL,
			status TEXT NOT NULL,
			universal_retailer_id TEXT NOT NULL,
			date_submitted ` + ts + `,
			record TEXT NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads (status)`,
		`CREATE TABLE IF NOT EXISTS lead_states (
			lead_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			lead_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			request TEXT,
			status TEXT NOT NULL,
			result TEXT,
			error TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_pending ON invocations (status, updated_at)`,
		`CREATE TABLE IF NOT EXISTS invocation_steps (
			invocation_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			result TEXT,
			failure TEXT NOT NULL DEFAULT '',
			recorded_at ` + ts + ` NOT NULL,
			PRIMARY KEY (invocation_id, step_id)
		)`,
	}
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, d dialect) error {
	for _, stmt := range d.statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migration failed: %w", d.name, err)
		}
	}
	return nil
}
