package models

import "github.com/shopspring/decimal"

// CartLine is one 'cart_items' row joined with its live product.
// Price is captured when the item is added; Stock and Archived are current.
type CartLine struct {
	ID        int64           `json:"id" db:"id"`
	ProductID int64           `json:"productId" db:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int             `json:"quantity" db:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Stock     int             `json:"stock"`
	Archived  bool            `json:"archived"`
	Available bool            `json:"available"`
}
