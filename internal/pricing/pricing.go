// Package pricing computes the price breakdown shown for a cart.
//
// The numbers are derived on every call and never persisted: subtotal is the
// sum of unit price times quantity, tax is a flat 10% of the subtotal, and
// total is subtotal plus tax. All three are rounded half-away-from-zero to
// cents after the arithmetic is done exactly.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/sakif/green-gaming/internal/model"
)

// TaxRate is the flat sales tax applied to every cart.
var TaxRate = decimal.RequireFromString("0.10")

// Item is anything with a unit price and a quantity.
type Item struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Summarize returns subtotal, tax and total for items.
// Items with a non-positive quantity are counted once, matching the
// single-copy cart where quantity is always 1.
func Summarize(items []Item) model.Summary {
	subtotal := decimal.Zero
	count := 0
	for _, it := range items {
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
		count++
	}

	tax := subtotal.Mul(TaxRate)
	total := subtotal.Add(tax)

	return model.Summary{
		Subtotal: subtotal.Round(2),
		Tax:      tax.Round(2),
		Total:    total.Round(2),
		Count:    count,
	}
}

// SummarizeLines is Summarize over persisted cart lines. Lines without an
// embedded game contribute nothing to the amounts but still count.
func SummarizeLines(lines []model.CartLine) model.Summary {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		price := decimal.Zero
		if l.Game != nil {
			price = l.Game.Price
		}
		items = append(items, Item{UnitPrice: price, Quantity: l.Quantity})
	}
	return Summarize(items)
}
