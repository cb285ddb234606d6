// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// DRIVER:
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without CGo. It registers itself with database/sql under the name "sqlite".
//
// SCHEMA:
// Tables are created by goose migrations embedded from ./migrations. Every
// call to New brings the schema up to the latest version; already-applied
// migrations are skipped, so reopening an existing file is safe.
//
// TIMESTAMPS:
// All instants are stored as INTEGER unix milliseconds (UTC). Usage dates are
// stored as "YYYY-MM-DD" text so they group and sort lexically.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/sakif/chat-wrapper/internal/repository/sqlite/migrations"

	_ "modernc.org/sqlite"
)

// Connection pragmas applied by the driver to every new connection.
const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// DB wraps a sql.DB connection pool and hands out the per-table repositories.
type DB struct {
	conn *sql.DB

	users    *UserStore
	sessions *SessionStore
	messages *MessageStore
	usage    *UsageStore
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/chatwrapper.db" → file-based database; the parent directory is created
//   - ":memory:"            → in-memory database, lost on Close
func New(ctx context.Context, dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating data directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", withPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: SQLite serialises writers anyway, and ":memory:" is
	// private to the connection that created it.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress. It is a no-op
	// for in-memory databases.
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return wrap(conn), nil
}

// wrap builds a DB around an already-open pool without touching the schema.
func wrap(conn *sql.DB) *DB {
	return &DB{
		conn:     conn,
		users:    &UserStore{conn: conn, now: time.Now},
		sessions: &SessionStore{conn: conn},
		messages: &MessageStore{conn: conn, now: time.Now},
		usage:    &UsageStore{conn: conn},
	}
}

func withPragmas(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath + "&" + dsnPragmas
	}
	return dbPath + "?" + dsnPragmas
}

func migrate(ctx context.Context, conn *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.UpContext(ctx, conn, ".")
}

// SchemaVersion returns the latest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int64, error) {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db.conn)
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Users() *UserStore       { return db.users }
func (db *DB) Sessions() *SessionStore { return db.sessions }
func (db *DB) Messages() *MessageStore { return db.messages }
func (db *DB) Usage() *UsageStore      { return db.usage }

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
