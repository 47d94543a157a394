package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by
	// the current user.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when an operation collides with existing state
	// (duplicate row, wrong status).
	ErrConflict = errors.New("conflict")

	// ErrInsufficientStock is returned when a product cannot cover the
	// requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ValidationError represents a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// StockError names the product that could not be fulfilled.
type StockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("only %d of %q left in stock (requested %d)", e.Available, e.ProductName, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
