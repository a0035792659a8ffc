package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"lens-tracker/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection. It is the default tabular store
// and also holds the config and principals tables.
type DB struct {
	sql *sql.DB
}

func dbPath(name string) string {
	if name == "" {
		name = "lens-tracker.db"
	}
	if filepath.IsAbs(name) {
		return name
	}
	// Prefer working directory so the DB is stable across go run / go build.
	// Fall back to executable directory for deployed builds.
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, name)
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), name)
}

// Open opens (or creates) the SQLite database at name and runs migrations.
func Open(name string) (*DB, error) {
	path := dbPath(name)
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS config (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS sheet_rows (
				sheet   TEXT NOT NULL,
				row_idx INTEGER NOT NULL,
				cells   TEXT NOT NULL,
				PRIMARY KEY (sheet, row_idx)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS principals (
				token_hash TEXT PRIMARY KEY,
				email      TEXT NOT NULL,
				role       TEXT NOT NULL,
				created_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_principals_email ON principals(email);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (principals)")
	}

	return nil
}

// SqlDB returns the underlying *sql.DB for use by other packages (e.g. auth store).
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}
