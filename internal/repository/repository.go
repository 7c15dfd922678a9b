// Package repository declares the storage contracts the services depend on.
//
// Implementations translate storage failures into apperror values:
// a missing row is apperror.ErrNotFound and a uniqueness violation is
// apperror.ErrConflict. Everything else is returned wrapped and treated as
// an internal failure by the handlers.
package repository

import (
	"context"

	"github.com/sakif/green-gaming/internal/model"
)

// ListOptions pages through a listing. Zero values mean "first page,
// default size".
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository is the credential store.
type UserRepository interface {
	// Create assigns ID and timestamps. A taken email is ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
	// Update writes email, password hash, role and GitHub link.
	Update(ctx context.Context, user *model.User) error
	// Delete removes the user and, through the schema, their cart lines.
	Delete(ctx context.Context, id string) error
}

// GameRepository is the catalog store.
type GameRepository interface {
	Create(ctx context.Context, game *model.Game) error
	GetByID(ctx context.Context, id string) (*model.Game, error)
	List(ctx context.Context, opts ListOptions) ([]model.Game, error)
	Update(ctx context.Context, game *model.Game) error
	// Delete removes the game and every cart line that references it.
	Delete(ctx context.Context, id string) error
}

// CartRepository stores cart lines. There is at most one line per
// (user, game) pair.
type CartRepository interface {
	// Lines returns the user's lines, oldest first, each with its Game.
	Lines(ctx context.Context, userID string) ([]model.CartLine, error)
	// Line returns a single line with its Game, or ErrNotFound.
	Line(ctx context.Context, userID, gameID string) (*model.CartLine, error)
	// AddLine inserts a line. An existing (user, game) pair is ErrConflict.
	AddLine(ctx context.Context, line *model.CartLine) error
	// RemoveLine deletes one line, or returns ErrNotFound.
	RemoveLine(ctx context.Context, userID, gameID string) error
	// Clear deletes every line for the user and reports how many went.
	Clear(ctx context.Context, userID string) (int64, error)
}
