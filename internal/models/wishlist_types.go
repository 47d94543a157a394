package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WishlistItem is a 'wishlist' row joined with its product.
type WishlistItem struct {
	ID        int64           `json:"id" db:"id"`
	ProductID int64           `json:"productId" db:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Stock     int             `json:"stock"`
	Archived  bool            `json:"archived"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}
