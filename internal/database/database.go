package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Supported driver names, as registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// New creates a new database connection pool for the shared event store.
func New(driver, dataSourceName string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		dataSourceName = sqliteDSN(dataSourceName)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + pragmas
	}
	return dsn + "?" + pragmas
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var sqlStmt string
	switch driver {
	case DriverSQLite:
		sqlStmt = `
	CREATE TABLE IF NOT EXISTS scheduler_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date_ms INTEGER NOT NULL,
		scope INTEGER NOT NULL,
		event_type INTEGER NOT NULL,
		item_key TEXT,
		fire_instance_id TEXT,
		faulted INTEGER NOT NULL DEFAULT 0,
		-- Store the error chain as JSON text
		errors_json TEXT
	);
	CREATE INDEX IF NOT EXISTS scheduler_events_date_idx ON scheduler_events (date_ms);
	`
	case DriverPostgres:
		sqlStmt = `
	CREATE TABLE IF NOT EXISTS scheduler_events (
		id BIGSERIAL PRIMARY KEY,
		date_ms BIGINT NOT NULL,
		scope SMALLINT NOT NULL,
		event_type SMALLINT NOT NULL,
		item_key TEXT,
		fire_instance_id TEXT,
		faulted BOOLEAN NOT NULL DEFAULT FALSE,
		errors_json TEXT
	);
	CREATE INDEX IF NOT EXISTS scheduler_events_date_idx ON scheduler_events (date_ms);
	`
	default:
		return fmt.Errorf("database: unsupported driver %q", driver)
	}
	_, err := db.ExecContext(ctx, sqlStmt)
	return err
}
