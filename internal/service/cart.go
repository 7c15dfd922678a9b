package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/model"
	"github.com/sakif/green-gaming/internal/pricing"
	"github.com/sakif/green-gaming/internal/repository"
)

// msgAlreadyInCart is the conflict message for a second add of one game.
const msgAlreadyInCart = "game is already in the cart"

// CartService is the persisted, per-user cart.
//
// RULES:
//   - a game appears at most once per cart, always with quantity 1
//   - adding a game that is already there is a Conflict and changes nothing
//   - removing a game that is not there is NotFound and changes nothing
//   - clearing is idempotent
//
// The router has already checked that the caller owns the cart or is an
// admin, so the methods take the target user ID as given.
type CartService struct {
	carts  repository.CartRepository
	users  repository.UserRepository
	games  repository.GameRepository
	logger *slog.Logger
}

// NewCartService wires the cart to its three tables.
//
// WHY USERS AND GAMES TOO?
// Cart rows only hold IDs. The service checks the user exists (so an unknown
// user is a 404, not an empty cart) and loads the games to embed them in the
// response and price the summary.
func NewCartService(
	carts repository.CartRepository,
	users repository.UserRepository,
	games repository.GameRepository,
	logger *slog.Logger,
) *CartService {
	return &CartService{carts: carts, users: users, games: games, logger: logger}
}

// ItemStatus answers "is this game in the cart?".
type ItemStatus struct {
	InCart bool            `json:"inCart"`
	Item   *model.CartLine `json:"item"`
}

// Get returns the user's cart with each game embedded and the price summary.
func (s *CartService) Get(ctx context.Context, userID string) (*model.Cart, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.load(ctx, userID)
}

// AddItem puts one copy of a game in the cart and returns the whole cart.
func (s *CartService) AddItem(ctx context.Context, userID, gameID string) (*model.Cart, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, apperror.ValidationFailed("gameId", "gameId is required")
	}

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.games.GetByID(ctx, gameID); err != nil {
		return nil, fmt.Errorf("adding to cart: %w", err)
	}

	// The explicit check gives the common case a clean answer. The unique
	// index on (user_id, game_id) still catches two adds racing past it.
	_, err := s.carts.Line(ctx, userID, gameID)
	switch {
	case err == nil:
		return nil, apperror.Conflict(msgAlreadyInCart)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("adding to cart: %w", err)
	}

	if err := s.carts.AddLine(ctx, &model.CartLine{UserID: userID, GameID: gameID}); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict(msgAlreadyInCart)
		}
		return nil, fmt.Errorf("adding to cart: %w", err)
	}

	s.logger.Info("cart item added",
		slog.String("userID", userID),
		slog.String("gameID", gameID),
	)
	return s.load(ctx, userID)
}

// RemoveItem takes a game out of the cart and returns what is left.
func (s *CartService) RemoveItem(ctx context.Context, userID, gameID string) (*model.Cart, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	if err := s.carts.RemoveLine(ctx, userID, gameID); err != nil {
		return nil, fmt.Errorf("removing from cart: %w", err)
	}

	s.logger.Info("cart item removed",
		slog.String("userID", userID),
		slog.String("gameID", gameID),
	)
	return s.load(ctx, userID)
}

// Clear empties the cart. An already empty cart is fine.
func (s *CartService) Clear(ctx context.Context, userID string) (*model.Cart, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	n, err := s.carts.Clear(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("clearing cart: %w", err)
	}

	s.logger.Info("cart cleared", slog.String("userID", userID), slog.Int64("removed", n))
	return s.load(ctx, userID)
}

// Contains reports whether gameID is in the user's cart, with the line if so.
func (s *CartService) Contains(ctx context.Context, userID, gameID string) (*ItemStatus, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	line, err := s.carts.Line(ctx, userID, gameID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &ItemStatus{InCart: false}, nil
		}
		return nil, fmt.Errorf("checking cart: %w", err)
	}
	return &ItemStatus{InCart: true, Item: line}, nil
}

func (s *CartService) requireUser(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return fmt.Errorf("loading cart owner: %w", err)
	}
	return nil
}

func (s *CartService) load(ctx context.Context, userID string) (*model.Cart, error) {
	lines, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}
	if lines == nil {
		lines = []model.CartLine{}
	}
	return &model.Cart{
		UserID:  userID,
		Lines:   lines,
		Summary: pricing.SummarizeLines(lines),
	}, nil
}
