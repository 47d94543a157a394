package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the model for the 'products' table.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	CategoryID  *int64          `json:"categoryId,omitempty" db:"category_id"`
	Name        string          `json:"name" db:"name"`
	Slug        string          `json:"slug" db:"slug"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	Image       string          `json:"image" db:"image"`
	IsArchived  bool            `json:"isArchived" db:"is_archived"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`

	// Joins (Not in DB table, populated manually)
	CategoryName string `json:"categoryName,omitempty" db:"-"`
	CategorySlug string `json:"categorySlug,omitempty" db:"-"`
}

// InStock reports whether qty units can currently be sold.
func (p *Product) InStock(qty int) bool {
	return !p.IsArchived && qty > 0 && p.Stock >= qty
}

// Category defines the struct for the 'categories' table
type Category struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Slug         string    `json:"slug" db:"slug"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	ProductCount int       `json:"productCount" db:"-"`
}
