package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
	"github.com/shopspring/decimal"
)

//
// --- Cart Handlers ---
//

// getOrCreateCartID finds a user's cart or creates one.
// Call it inside a transaction so the insert cannot race a concurrent one.
func (h *Handlers) getOrCreateCartID(ctx context.Context, q database.Querier, userID int64) (int64, error) {
	var cartID int64

	// 1. Try to find an existing cart
	err := q.QueryRowContext(ctx, "SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err == nil {
		return cartID, nil
	}

	// 2. If no cart exists, create one
	if errors.Is(err, sql.ErrNoRows) {
		result, err := q.ExecContext(ctx, "INSERT INTO carts (user_id) VALUES (?)", userID)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	// 3. A real database error occurred
	return 0, err
}

// loadCartLines returns the user's cart lines, newest first.
func (h *Handlers) loadCartLines(ctx context.Context, q database.Querier, userID int64) ([]models.CartLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ci.id, ci.product_id, p.name, p.slug, p.image, ci.price, ci.quantity, p.stock, p.is_archived
		FROM cart_items ci
		JOIN carts ct ON ct.id = ci.cart_id
		JOIN products p ON p.id = ci.product_id
		WHERE ct.user_id = ?
		ORDER BY ci.created_at DESC, ci.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var l models.CartLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Name, &l.Slug, &l.Image, &l.Price, &l.Quantity, &l.Stock, &l.Archived); err != nil {
			return nil, err
		}
		l.LineTotal = l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		l.Available = !l.Archived && l.Stock >= l.Quantity
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetCart is the handler for GET /api/cart.
// Totals only count lines that can currently be bought.
func (h *Handlers) GetCart(c *gin.Context) {
	userID := currentUserID(c)

	lines, err := h.loadCartLines(c.Request.Context(), h.DB, userID)
	if err != nil {
		serverError(c, err, "Failed to load cart")
		return
	}

	subtotal := decimal.Zero
	totalItems := 0
	for _, l := range lines {
		if !l.Available {
			continue
		}
		subtotal = subtotal.Add(l.LineTotal)
		totalItems += l.Quantity
	}
	shipping := h.shippingFee(subtotal)
	if totalItems == 0 {
		shipping = decimal.Zero
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"items":       lines,
		"subtotal":    subtotal.StringFixed(2),
		"shippingFee": shipping.StringFixed(2),
		"total":       subtotal.Add(shipping).StringFixed(2),
		"totalItems":  totalItems,
	})
}

// GetCartCount is the handler for GET /api/cart/count (header badge).
func (h *Handlers) GetCartCount(c *gin.Context) {
	var count int
	err := h.DB.QueryRowContext(c.Request.Context(), `
		SELECT COALESCE(SUM(ci.quantity), 0)
		FROM cart_items ci JOIN carts ct ON ct.id = ci.cart_id
		WHERE ct.user_id = ?`, currentUserID(c)).Scan(&count)
	if err != nil {
		serverError(c, err, "Failed to count cart items")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

// AddToCartInput defines the JSON for adding an item to the cart.
type AddToCartInput struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"gte=0,lte=99"`
}

// AddToCart is the handler for POST /api/cart/items.
func (h *Handlers) AddToCart(c *gin.Context) {
	userID := currentUserID(c)
	ctx := c.Request.Context()

	var input AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		serverError(c, err, "Transaction failed")
		return
	}
	defer tx.Rollback()

	if err := h.addToCart(ctx, tx, userID, input.ProductID, input.Quantity); err != nil {
		h.cartError(c, err)
		return
	}

	if err := tx.Commit(); err != nil {
		serverError(c, err, "Commit failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Item added to cart."})
}

// errProductUnavailable is returned for missing or archived products.
var errProductUnavailable = errors.New("product not available")

// cartStockError reports that the cart would exceed the product's stock.
type cartStockError struct {
	name      string
	available int
	inCart    int
}

func (e *cartStockError) Error() string {
	if e.inCart > 0 {
		return fmt.Sprintf("Only %d of %s left in stock and you already have %d in your cart.", e.available, e.name, e.inCart)
	}
	return fmt.Sprintf("Only %d of %s left in stock.", e.available, e.name)
}

// addToCart upserts a cart line at the product's current price after
// checking that cart quantity + qty fits the stock.
func (h *Handlers) addToCart(ctx context.Context, tx *sql.Tx, userID, productID int64, qty int) error {
	cartID, err := h.getOrCreateCartID(ctx, tx, userID)
	if err != nil {
		return err
	}

	// Logic check: the product must exist and not be archived
	var (
		name  string
		price decimal.Decimal
		stock int
	)
	err = tx.QueryRowContext(ctx,
		"SELECT name, price, stock FROM products WHERE id = ? AND is_archived = 0 FOR UPDATE", productID).
		Scan(&name, &price, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errProductUnavailable
		}
		return err
	}

	var inCart int
	err = tx.QueryRowContext(ctx,
		"SELECT quantity FROM cart_items WHERE cart_id = ? AND product_id = ?", cartID, productID).Scan(&inCart)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if inCart+qty > stock {
		return &cartStockError{name: name, available: stock, inCart: inCart}
	}

	// Insert or Update logic (Upsert), refreshing the captured price
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, price)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			quantity = quantity + VALUES(quantity),
			price = VALUES(price)`,
		cartID, productID, qty, price)
	return err
}

// cartError maps addToCart failures to responses.
func (h *Handlers) cartError(c *gin.Context, err error) {
	var stockErr *cartStockError
	switch {
	case errors.Is(err, errProductUnavailable):
		fail(c, http.StatusNotFound, "Product not found or no longer available.")
	case errors.As(err, &stockErr):
		fail(c, http.StatusConflict, stockErr.Error())
	default:
		serverError(c, err, "Failed to update cart")
	}
}

// UpdateCartItemInput defines the JSON for updating an item's quantity.
type UpdateCartItemInput struct {
	Quantity *int `json:"quantity" binding:"required,gte=0,lte=99"` // 0 deletes the line
}

// UpdateCartItem is the handler for PUT /api/cart/items/:product_id
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	// 1. --- Get IDs ---
	userID := currentUserID(c)
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// 2. --- Bind & Validate JSON ---
	var input UpdateCartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	// --- Handle Quantity ---
	if *input.Quantity == 0 {
		h.deleteCartItem(c, userID, productID)
		return
	}

	// 3. --- Check Stock ---
	var (
		name  string
		stock int
	)
	err := h.DB.QueryRowContext(ctx, "SELECT name, stock FROM products WHERE id = ? AND is_archived = 0", productID).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusNotFound, "Product not found or no longer available.")
			return
		}
		serverError(c, err, "Failed to check product stock")
		return
	}
	if stock < *input.Quantity {
		fail(c, http.StatusConflict, (&cartStockError{name: name, available: stock}).Error())
		return
	}

	// 4. --- Execute Update ---
	result, err := h.DB.ExecContext(ctx, `
		UPDATE cart_items ci JOIN carts ct ON ct.id = ci.cart_id
		SET ci.quantity = ?
		WHERE ct.user_id = ? AND ci.product_id = ?`,
		*input.Quantity, userID, productID)
	if err != nil {
		serverError(c, err, "Failed to update item")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// MySQL reports 0 when the value is unchanged; confirm the line exists
		var exists int
		err := h.DB.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM cart_items ci JOIN carts ct ON ct.id = ci.cart_id
			WHERE ct.user_id = ? AND ci.product_id = ?`, userID, productID).Scan(&exists)
		if err != nil {
			serverError(c, err, "Failed to update item")
			return
		}
		if exists == 0 {
			fail(c, http.StatusNotFound, "Item not found in cart.")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart item quantity updated."})
}

// DeleteCartItem is the handler for DELETE /api/cart/items/:product_id
func (h *Handlers) DeleteCartItem(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	h.deleteCartItem(c, currentUserID(c), productID)
}

// deleteCartItem is a helper to DRY up the delete logic
func (h *Handlers) deleteCartItem(c *gin.Context, userID, productID int64) {
	result, err := h.DB.ExecContext(c.Request.Context(), `
		DELETE ci FROM cart_items ci JOIN carts ct ON ct.id = ci.cart_id
		WHERE ct.user_id = ? AND ci.product_id = ?`, userID, productID)
	if err != nil {
		serverError(c, err, "Failed to delete item")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		fail(c, http.StatusNotFound, "Item not found in cart.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Item removed from cart."})
}

// ClearCart is the handler for DELETE /api/cart
func (h *Handlers) ClearCart(c *gin.Context) {
	_, err := h.DB.ExecContext(c.Request.Context(), `
		DELETE ci FROM cart_items ci JOIN carts ct ON ct.id = ci.cart_id
		WHERE ct.user_id = ?`, currentUserID(c))
	if err != nil {
		serverError(c, err, "Failed to clear cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart cleared."})
}
