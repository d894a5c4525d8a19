package model

import (
	"github.com/shopspring/decimal"
)

// Product is the catalog entry cached locally for display.
type Product struct {
	ID                 string           `json:"_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	ImageCover         string           `json:"imageCover,omitempty"`
	Price              decimal.Decimal  `json:"price"`
	PriceAfterDiscount *decimal.Decimal `json:"priceAfterDiscount,omitempty"`
	Quantity           int              `json:"quantity"` // stock
}

// EffectivePrice prefers the discounted price when one is set.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.PriceAfterDiscount != nil && p.PriceAfterDiscount.IsPositive() {
		return *p.PriceAfterDiscount
	}
	return p.Price
}

func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:         p.ID,
		Title:      p.Title,
		ImageCover: p.ImageCover,
		Price:      p.EffectivePrice(),
	}
}
