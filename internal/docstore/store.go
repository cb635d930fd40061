package docstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/docbridge/internal/querysql"
	"github.com/roach88/docbridge/internal/translate"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - empty database
// 1 - keyspaces catalog
const currentSchemaVersion = 1

const driverName = "sqlite3_docbridge"

var (
	// ErrKeyspaceNotFound is returned for a keyspace that was never created.
	ErrKeyspaceNotFound = errors.New("keyspace not found")

	// ErrNotFound is returned by Get for a missing document.
	ErrNotFound = errors.New("document not found")
)

var keyspaceName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

var registerDriver sync.Once

// connectPragmas are applied to every new connection.
var connectPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA case_sensitive_like = ON",
}

func register() {
	registerDriver.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc(querysql.UnescapeFunc, translate.Unescape, true); err != nil {
					return fmt.Errorf("register %s: %w", querysql.UnescapeFunc, err)
				}
				for _, pragma := range connectPragmas {
					if _, err := conn.Exec(pragma, nil); err != nil {
						return fmt.Errorf("failed to execute %q: %w", pragma, err)
					}
				}
				return nil
			},
		})
	})
}

// Store is a document store backed by one SQLite database file.
type Store struct {
	db *sql.DB

	// write serializes writers; SQLite allows one at a time.
	write sync.Mutex
}

// Open creates or opens a document store at path.
// Applies the catalog schema and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	register()

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Readers may hold a connection for the life of a cursor while
	// inference samples other keyspaces.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applySchema creates the catalog if it doesn't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// CreateKeyspace creates a keyspace. Creating an existing keyspace is a
// no-op.
func (s *Store) CreateKeyspace(ctx context.Context, name string) error {
	if !keyspaceName.MatchString(name) {
		return fmt.Errorf("invalid keyspace name %q", name)
	}

	s.write.Lock()
	defer s.write.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	defer tx.Rollback()

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id  TEXT PRIMARY KEY,
		doc TEXT NOT NULL CHECK (json_valid(doc) AND json_type(doc) = 'object')
	)`, querysql.QuoteIdent(querysql.CollectionTable(name)))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create keyspace %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO keyspaces (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return fmt.Errorf("create keyspace %q: %w", name, err)
	}
	return tx.Commit()
}

// hasKeyspace reports whether a keyspace exists.
func (s *Store) hasKeyspace(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM keyspaces WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup keyspace %q: %w", name, err)
	}
	return n > 0, nil
}

func (s *Store) requireKeyspace(ctx context.Context, name string) error {
	ok, err := s.hasKeyspace(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrKeyspaceNotFound, name)
	}
	return nil
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
