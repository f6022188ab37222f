package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// BusyTimeoutMillis is how long a statement waits for the game's lock.
const BusyTimeoutMillis = 5000

// gameTables are the tables of the save rankwatch cannot work without.
var gameTables = []string{"pilot", "squadron", "mission", "event"}

// Store is a connection to one campaign save.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens an existing campaign save and ensures the promotion_attempts
// table exists. A file without the game's tables is rejected before
// anything is written to it; the error wraps ErrSchemaMissing.
//
// The connection is configured with:
//   - read-write mode, never creating the file
//   - a busy timeout of BusyTimeoutMillis for lock contention with the game
//   - a single connection, so a transaction sees its own writes
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The save is shared with the game; one connection keeps our own lock
	// footprint minimal.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := checkGameTables(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the file the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CheckSchema verifies the game's tables exist. A save without them is not
// a campaign save; the error wraps ErrSchemaMissing.
func (s *Store) CheckSchema(ctx context.Context) error {
	return checkGameTables(ctx, s.db)
}

func checkGameTables(ctx context.Context, db *sql.DB) error {
	for _, table := range gameTables {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: table %q", ErrSchemaMissing, table)
		}
		if err != nil {
			return fmt.Errorf("check schema: %w", err)
		}
	}
	return nil
}

// dsn builds a URI filename so mode=rw can be passed. '?' and '#' would end
// the path part of the URI and are escaped.
func dsn(path string) string {
	v := url.Values{}
	v.Set("mode", "rw")
	v.Set("_busy_timeout", fmt.Sprint(BusyTimeoutMillis))
	p := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(filepath.ToSlash(path))
	return "file:" + p + "?" + v.Encode()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", BusyTimeoutMillis),
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the attempts table if it doesn't exist and runs
// migrations. This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations upgrades promotion_attempts tables written by earlier
// releases. user_version belongs to the game, so migrations key off the
// table's columns instead.
func runMigrations(db *sql.DB) error {
	cols, err := tableColumns(db, "promotion_attempts")
	if err != nil {
		return err
	}

	if !cols["fail_count"] {
		if _, err := db.Exec(`ALTER TABLE promotion_attempts ADD COLUMN fail_count INTEGER DEFAULT 0`); err != nil {
			return fmt.Errorf("add fail_count: %w", err)
		}
	}

	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	return cols, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
