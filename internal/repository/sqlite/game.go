package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/model"
	"github.com/sakif/green-gaming/internal/repository"
)

var _ repository.GameRepository = (*GameDB)(nil)

// GameDB is the games table.
type GameDB struct {
	conn *sql.DB
}

const gameColumns = `id, title, description, image, price, rating, release_date, created_at, updated_at`

// scanGame reads the gameColumns in order. decimal.Decimal implements
// sql.Scanner, so the TEXT price column scans straight into it.
func scanGame(row rowScanner) (*model.Game, error) {
	var g model.Game
	err := row.Scan(
		&g.ID, &g.Title, &g.Description, &g.Image,
		&g.Price, &g.Rating, &g.ReleaseDate,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a game, assigning ID and timestamps in place.
func (gdb *GameDB) Create(ctx context.Context, game *model.Game) error {
	now := time.Now().UTC()
	game.ID = xid.New().String()
	game.CreatedAt = now
	game.UpdatedAt = now

	_, err := gdb.conn.ExecContext(ctx,
		`INSERT INTO games (`+gameColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		game.ID,
		game.Title,
		game.Description,
		game.Image,
		game.Price.String(),
		game.Rating,
		game.ReleaseDate,
		game.CreatedAt,
		game.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating game: %w", err)
	}

	return nil
}

// GetByID returns apperror.ErrNotFound if no game has that ID.
func (gdb *GameDB) GetByID(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanGame(gdb.conn.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("game", id)
		}
		return nil, fmt.Errorf("sqlite: getting game %s: %w", id, err)
	}
	return g, nil
}

// List returns games newest first.
func (gdb *GameDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Game, error) {
	limit, offset := pageBounds(opts)

	rows, err := gdb.conn.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing games: %w", err)
	}
	defer rows.Close()

	games := make([]model.Game, 0, limit)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning game row: %w", err)
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating games: %w", err)
	}

	return games, nil
}

// Update overwrites every mutable column with the values in game.
func (gdb *GameDB) Update(ctx context.Context, game *model.Game) error {
	game.UpdatedAt = time.Now().UTC()

	res, err := gdb.conn.ExecContext(ctx,
		`UPDATE games
		 SET title = ?, description = ?, image = ?, price = ?, rating = ?, release_date = ?, updated_at = ?
		 WHERE id = ?`,
		game.Title,
		game.Description,
		game.Image,
		game.Price.String(),
		game.Rating,
		game.ReleaseDate,
		game.UpdatedAt,
		game.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating game %s: %w", game.ID, err)
	}

	return rowsAffectedOrNotFound(res, "game", game.ID)
}

// Delete removes a game. Cart lines pointing at it cascade away.
func (gdb *GameDB) Delete(ctx context.Context, id string) error {
	res, err := gdb.conn.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting game %s: %w", id, err)
	}
	return rowsAffectedOrNotFound(res, "game", id)
}
