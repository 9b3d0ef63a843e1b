// Package sqlite provides the SQLite-backed task store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/taskbasket/taskbasket/internal/storage"
)

// Store is a SQLite-backed implementation of storage.Storage.
type Store struct {
	db     *sql.DB
	dbPath string
}

var _ storage.Storage = (*Store)(nil)

// New opens (creating if needed) the task database at the given path.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Set connection pool limits appropriate for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Another process may hold the database briefly (WAL checkpoint); retry
	// the first contact with a short exponential backoff.
	if err := backoff.Retry(db.Ping, newOpenBackoff()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func newOpenBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	return bo
}

// initSchema creates all tables if they don't exist.
func (s *Store) initSchema() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmts := strings.Split(schema, ";")
	for _, stmt := range stmts {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w\nSQL: %s", err, stmt)
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.dbPath }

// RunInTransaction executes fn inside one database transaction. If fn
// returns an error the transaction is rolled back, otherwise committed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // No-op after successful commit

	if err := fn(&sqliteTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// querier is the subset of database operations shared by *sql.DB and
// *sql.Tx, letting the task helpers serve both paths.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx adapts a *sql.Tx to storage.Transaction.
type sqliteTx struct {
	q querier
}

var _ storage.Transaction = (*sqliteTx)(nil)

// timeToMicros converts a timestamp to its storage form.
func timeToMicros(t time.Time) int64 {
	return t.UTC().Truncate(time.Microsecond).UnixMicro()
}

// microsToTime converts a stored timestamp back to UTC time.
func microsToTime(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// nullMicros renders a nullable timestamp for storage.
func nullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: timeToMicros(*t), Valid: true}
}

// parseNullMicros parses a nullable stored timestamp.
func parseNullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := microsToTime(v.Int64)
	return &t
}
