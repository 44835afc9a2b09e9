package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"slices"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/mirdump/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// pragma is a per-connection setting. Open applies it and reads it back;
// SQLite ignores some settings silently (WAL on a read-only file).
type pragma struct {
	name   string
	value  string
	accept []string
}

var pragmas = []pragma{
	// In-memory databases report "memory" whatever was asked for.
	{name: "journal_mode", value: "WAL", accept: []string{"wal", "memory"}},
	{name: "synchronous", value: "NORMAL", accept: []string{"1"}},
	{name: "busy_timeout", value: "5000", accept: []string{"5000"}},
	{name: "foreign_keys", value: "ON", accept: []string{"1"}},
}

// migrations[i] takes a database from user_version i to i+1. schema.sql
// is version 0.
var migrations = []string{
	// Point states by content, for comparing runs.
	`CREATE INDEX IF NOT EXISTS idx_point_states_lookup
		ON point_states(function, location, state, digest)`,
}

// schemaVersion is the user_version of a fully migrated results database.
var schemaVersion = len(migrations)

// Store holds analysis runs in a SQLite results database.
type Store struct {
	db  *sql.DB
	sql *querysql.SQLCompiler
}

// Open opens the results database at path, creating it if needed, and
// migrates it to the current schema. path may be ":memory:".
//
// A database written by a newer mirdump (user_version above
// schemaVersion) is refused rather than downgraded.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// Pragmas are per connection and an in-memory database lives only as
	// long as its connection, so the pool holds exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := configure(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &Store{db: db, sql: querysql.NewSQLCompiler(Schema)}, nil
}

// Close closes the database. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func configure(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set %s: %w", p.name, err)
		}
		got, err := readPragma(db, p.name)
		if err != nil {
			return err
		}
		if !slices.Contains(p.accept, got) {
			return fmt.Errorf("pragma %s is %q after setting %s", p.name, got, p.value)
		}
	}
	return nil
}

// migrate creates the base tables and applies pending migrations. Each
// migration commits together with its user_version bump.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	v, err := readPragma(db, "user_version")
	if err != nil {
		return err
	}
	var version int
	if _, err := fmt.Sscan(v, &version); err != nil {
		return fmt.Errorf("user_version %q: %w", v, err)
	}
	if version > schemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, schemaVersion)
	}

	for i := version; i < schemaVersion; i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", i+1, err)
		}
	}
	return nil
}

func readPragma(db *sql.DB, name string) (string, error) {
	var value string
	if err := db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return value, nil
}
