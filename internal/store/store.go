package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Table is the name of the icon table.
const Table = "icons"

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("icon row not found")

// SchemaID composes the schema identifier from the release constant and the
// configured icon size. Changing either invalidates every stored blob.
func SchemaID(release, iconPixelSize int) int {
	return (release << 16) + iconPixelSize
}

// Store provides durable storage for icon cache rows.
type Store struct {
	db       *sql.DB
	path     string
	schemaID int
}

// Open creates or opens a SQLite database at the given path.
//
// If the stored schema identifier differs from schemaID the icons table is
// dropped and recreated.
func Open(path string, schemaID int) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; the cache worker is it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(context.Background(), schemaID); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// SchemaID returns the schema identifier the table was created under.
func (s *Store) SchemaID() int {
	return s.schemaID
}

// Rebuild drops and recreates the icons table under a new schema identifier.
func (s *Store) Rebuild(ctx context.Context, schemaID int) error {
	if err := s.recreate(ctx, schemaID); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		// Component prefixes are matched with LIKE.
		"PRAGMA case_sensitive_like = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// ensureSchema creates the table, rebuilding it when user_version differs.
func (s *Store) ensureSchema(ctx context.Context, schemaID int) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version != schemaID {
		return s.recreate(ctx, schemaID)
	}

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	s.schemaID = schemaID
	return nil
}

func (s *Store) recreate(ctx context.Context, schemaID int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+Table); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaID)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.schemaID = schemaID
	return nil
}

// userVersion reads PRAGMA user_version. Used for testing.
func (s *Store) userVersion() (int, error) {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	return version, err
}
