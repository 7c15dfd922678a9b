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

var _ repository.CartRepository = (*CartDB)(nil)

// CartDB is the cart_lines table.
type CartDB struct {
	conn *sql.DB
}

// lineSelect joins each line to its game so the read model is complete in
// one query. The inner join also hides any line whose game is gone, though
// the cascade means that should never happen.
const lineSelect = `
	SELECT c.id, c.user_id, c.game_id, c.quantity, c.created_at,
	       g.id, g.title, g.description, g.image, g.price, g.rating, g.release_date, g.created_at, g.updated_at
	FROM cart_lines c
	JOIN games g ON g.id = c.game_id`

func scanLine(row rowScanner) (*model.CartLine, error) {
	var (
		l model.CartLine
		g model.Game
	)
	err := row.Scan(
		&l.ID, &l.UserID, &l.GameID, &l.Quantity, &l.CreatedAt,
		&g.ID, &g.Title, &g.Description, &g.Image, &g.Price, &g.Rating, &g.ReleaseDate, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Game = &g
	return &l, nil
}

// Lines returns the user's cart in the order items were added.
func (c *CartDB) Lines(ctx context.Context, userID string) ([]model.CartLine, error) {
	rows, err := c.conn.QueryContext(ctx,
		lineSelect+` WHERE c.user_id = ? ORDER BY c.created_at, c.id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cart lines for %s: %w", userID, err)
	}
	defer rows.Close()

	lines := []model.CartLine{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning cart line: %w", err)
		}
		lines = append(lines, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cart lines: %w", err)
	}

	return lines, nil
}

// Line returns the single line for (userID, gameID).
func (c *CartDB) Line(ctx context.Context, userID, gameID string) (*model.CartLine, error) {
	l, err := scanLine(c.conn.QueryRowContext(ctx,
		lineSelect+` WHERE c.user_id = ? AND c.game_id = ?`, userID, gameID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("cart item", gameID)
		}
		return nil, fmt.Errorf("sqlite: getting cart line %s/%s: %w", userID, gameID, err)
	}
	return l, nil
}

// AddLine inserts a line with quantity 1.
//
// The UNIQUE(user_id, game_id) constraint is the final word on duplicates:
// if two requests race, the loser's INSERT fails here and comes back as a
// Conflict instead of a second row.
func (c *CartDB) AddLine(ctx context.Context, line *model.CartLine) error {
	line.ID = xid.New().String()
	line.Quantity = 1
	line.CreatedAt = time.Now().UTC()

	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO cart_lines (id, user_id, game_id, quantity, created_at) VALUES (?, ?, ?, ?, ?)`,
		line.ID, line.UserID, line.GameID, line.Quantity, line.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.Conflict("game is already in the cart")
		case isForeignKeyViolation(err):
			return apperror.NotFound("game", line.GameID)
		}
		return fmt.Errorf("sqlite: adding cart line: %w", err)
	}

	return nil
}

// RemoveLine deletes one line, or returns apperror.ErrNotFound.
func (c *CartDB) RemoveLine(ctx context.Context, userID, gameID string) error {
	res, err := c.conn.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE user_id = ? AND game_id = ?`, userID, gameID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing cart line %s/%s: %w", userID, gameID, err)
	}
	return rowsAffectedOrNotFound(res, "cart item", gameID)
}

// Clear empties the cart. Clearing an empty cart is not an error.
func (c *CartDB) Clear(ctx context.Context, userID string) (int64, error) {
	res, err := c.conn.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: clearing cart for %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
