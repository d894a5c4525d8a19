package model

import (
	"github.com/shopspring/decimal"
)

const placeholderTitle = "Unknown product"

// ProductSnapshot is the denormalized display data stored with a cart line.
type ProductSnapshot struct {
	ID         string          `json:"_id"`
	Title      string          `json:"title"`
	ImageCover string          `json:"imageCover,omitempty"`
	Price      decimal.Decimal `json:"price"`
}

// PlaceholderSnapshot is used when the catalog cannot resolve a product.
func PlaceholderSnapshot(productID string) ProductSnapshot {
	return ProductSnapshot{
		ID:    productID,
		Title: placeholderTitle,
		Price: decimal.Zero,
	}
}

func (s ProductSnapshot) IsPlaceholder() bool {
	return s.Title == placeholderTitle && s.Price.IsZero() && s.ImageCover == ""
}

type CartLine struct {
	ID      string          `json:"_id"`     // line ID, generated locally
	Product ProductSnapshot `json:"product"` // snapshot at the time of the last update
	Count   int             `json:"count"`   // always >= 1
	Price   decimal.Decimal `json:"price"`   // unit price
}

func (l CartLine) ProductID() string {
	return l.Product.ID
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Count)))
}

// FindCartLine returns the index of the line holding productID, or -1.
func FindCartLine(lines []CartLine, productID string) int {
	for i, line := range lines {
		if line.ProductID() == productID {
			return i
		}
	}
	return -1
}

// CartQuantity sums the counts of all lines.
func CartQuantity(lines []CartLine) int {
	total := 0
	for _, line := range lines {
		total += line.Count
	}
	return total
}

func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
