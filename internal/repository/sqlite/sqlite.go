// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C compiler, and
// cross-compilation just works. The same code runs against a file in
// production and ":memory:" in tests.
//
// One *DB owns the connection pool. Users(), Games() and Carts() hand out
// thin views over it, one per repository interface, so the three stores can
// each have their own Create/GetByID without name clashes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/green-gaming/internal/apperror"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/green-gaming.db" → file-based, persistent
//   - ":memory:"             → in-memory, for tests
//
// PRAGMAS GO IN THE DSN:
// foreign_keys and busy_timeout are per-connection settings. Passing them as
// _pragma DSN parameters applies them to every connection the pool opens,
// not just the first one.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database, so the
	// pool must never open a second one.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

func dsn(dbPath string) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}
	// WAL lets readers proceed while a write is in flight. It has no
	// meaning for an in-memory database.
	if !isMemory(dbPath) {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + strings.Join(pragmas, "&")
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// INTEGRITY LIVES IN THE SCHEMA:
//   - users.email is UNIQUE (stored lowercased by the service)
//   - cart_lines has UNIQUE(user_id, game_id): one copy per game, even when
//     two requests race past the service's existence check
//   - cart_lines rows cascade away with their user or game
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL DEFAULT 'USER' CHECK (role IN ('USER', 'ADMIN')),
			github_id     INTEGER UNIQUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// price is TEXT so the decimal value round-trips exactly.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS games (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL,
			image        TEXT NOT NULL,
			price        TEXT NOT NULL,
			rating       REAL NOT NULL DEFAULT 0,
			release_date TEXT NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_games_created_at ON games(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating games table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS cart_lines (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			game_id    TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			quantity   INTEGER NOT NULL DEFAULT 1 CHECK (quantity = 1),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, game_id)
		);
		CREATE INDEX IF NOT EXISTS idx_cart_lines_game_id ON cart_lines(game_id);
	`)
	if err != nil {
		return fmt.Errorf("creating cart_lines table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// The driver exposes no typed error for it, so we match on the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// rowsAffectedOrNotFound turns a zero-row UPDATE/DELETE into NotFound.
func rowsAffectedOrNotFound(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

// Users returns the users table view.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Games returns the games table view.
func (db *DB) Games() *GameDB { return &GameDB{conn: db.conn} }

// Carts returns the cart_lines table view.
func (db *DB) Carts() *CartDB { return &CartDB{conn: db.conn} }
