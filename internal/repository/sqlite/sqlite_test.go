package sqlite

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sakif/green-gaming/internal/model"
)

// newTestDB opens a fresh in-memory database that lives for one test.
// t.Helper() makes failures point at the caller's line.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test db")
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "$2a$04$hash", Role: model.RoleUser}
	require.NoError(t, db.Users().Create(context.Background(), u))
	return u
}

func createTestGame(t *testing.T, db *DB, title, price string) *model.Game {
	t.Helper()
	g := &model.Game{
		Title:       title,
		Description: "A perfectly fine game to test with.",
		Image:       "https://example.com/" + title + ".png",
		Price:       decimal.RequireFromString(price),
		Rating:      4.5,
		ReleaseDate: "2023-10-20",
	}
	require.NoError(t, db.Games().Create(context.Background(), g))
	return g
}

func TestNew_RunsMigrationsIdempotently(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.migrate(), "migrate() must be safe to run twice")
	require.NoError(t, db.Ping(context.Background()))
}

func TestDSN(t *testing.T) {
	require.Equal(t,
		":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		dsn(":memory:"))
	require.Equal(t,
		"data/shop.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		dsn("data/shop.db"))
}
