package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game is a product in the catalog.
//
// Price uses decimal.Decimal so cart totals never pick up float rounding
// noise. It marshals to JSON as a string ("59.99") and accepts either a
// string or a bare number on the way in.
type Game struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Rating      float64         `json:"rating"`
	ReleaseDate string          `json:"releaseDate"` // YYYY-MM-DD
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// GamePatch carries a partial update. Nil fields are left unchanged.
type GamePatch struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Rating      *float64         `json:"rating,omitempty"`
	ReleaseDate *string          `json:"releaseDate,omitempty"`
}

// Apply copies every non-nil field of p onto g.
func (p GamePatch) Apply(g *Game) {
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.Image != nil {
		g.Image = *p.Image
	}
	if p.Price != nil {
		g.Price = *p.Price
	}
	if p.Rating != nil {
		g.Rating = *p.Rating
	}
	if p.ReleaseDate != nil {
		g.ReleaseDate = *p.ReleaseDate
	}
}

// Empty reports whether the patch changes nothing.
func (p GamePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Image == nil &&
		p.Price == nil && p.Rating == nil && p.ReleaseDate == nil
}
