package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one (user, game) pairing in a persisted cart.
// Quantity is always 1: a game is either in the cart or it isn't.
type CartLine struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	GameID    string    `json:"gameId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	Game      *Game     `json:"game,omitempty"`
}

// Summary is the derived price breakdown of a cart. It is computed on
// every read and never stored.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// Cart is the full view of a user's cart returned by the API.
type Cart struct {
	UserID  string     `json:"userId"`
	Lines   []CartLine `json:"lines"`
	Summary Summary    `json:"summary"`
}
