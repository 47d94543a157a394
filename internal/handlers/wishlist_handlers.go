package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
)

//
// --- Wishlist Handlers ---
//

// GetWishlist is the handler for GET /api/wishlist
func (h *Handlers) GetWishlist(c *gin.Context) {
	rows, err := h.DB.QueryContext(c.Request.Context(), `
		SELECT w.id, w.product_id, p.name, p.price, p.image, p.stock, p.is_archived, w.created_at
		FROM wishlist w JOIN products p ON p.id = w.product_id
		WHERE w.user_id = ?
		ORDER BY w.created_at DESC, w.id DESC`, currentUserID(c))
	if err != nil {
		serverError(c, err, "Failed to load wishlist")
		return
	}
	defer rows.Close()

	items := []models.WishlistItem{}
	for rows.Next() {
		var it models.WishlistItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.Price, &it.Image, &it.Stock, &it.Archived, &it.CreatedAt); err != nil {
			serverError(c, err, "Failed to scan wishlist item")
			return
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		serverError(c, err, "Failed to load wishlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": items})
}

// WishlistInput is the body of POST /api/wishlist
type WishlistInput struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
}

// AddToWishlist is the handler for POST /api/wishlist
// Adding a product twice is not an error.
func (h *Handlers) AddToWishlist(c *gin.Context) {
	ctx := c.Request.Context()

	var input WishlistInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var exists int
	if err := h.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE id = ? AND is_archived = 0", input.ProductID).Scan(&exists); err != nil {
		serverError(c, err, "Failed to check product")
		return
	}
	if exists == 0 {
		fail(c, http.StatusNotFound, "Product not found or no longer available.")
		return
	}

	if _, err := h.DB.ExecContext(ctx,
		"INSERT IGNORE INTO wishlist (user_id, product_id) VALUES (?, ?)", currentUserID(c), input.ProductID); err != nil {
		serverError(c, err, "Failed to update wishlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Added to wishlist.", "in_wishlist": true})
}

// RemoveFromWishlist is the handler for DELETE /api/wishlist/:product_id
func (h *Handlers) RemoveFromWishlist(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	res, err := h.DB.ExecContext(c.Request.Context(),
		"DELETE FROM wishlist WHERE user_id = ? AND product_id = ?", currentUserID(c), productID)
	if err != nil {
		serverError(c, err, "Failed to update wishlist")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fail(c, http.StatusNotFound, "Product is not in your wishlist.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Removed from wishlist.", "in_wishlist": false})
}

// MoveWishlistToCart is the handler for POST /api/wishlist/:product_id/move-to-cart
// The wishlist row is removed only when the cart accepted the product.
func (h *Handlers) MoveWishlistToCart(c *gin.Context) {
	userID := currentUserID(c)
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		serverError(c, err, "Transaction failed")
		return
	}
	defer tx.Rollback()

	var wishlistID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM wishlist WHERE user_id = ? AND product_id = ? FOR UPDATE", userID, productID).Scan(&wishlistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusNotFound, "Product is not in your wishlist.")
			return
		}
		serverError(c, err, "Failed to load wishlist")
		return
	}

	if err := h.addToCart(ctx, tx, userID, productID, 1); err != nil {
		h.cartError(c, err)
		return
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM wishlist WHERE id = ?", wishlistID); err != nil {
		serverError(c, err, "Failed to update wishlist")
		return
	}
	if err := tx.Commit(); err != nil {
		serverError(c, err, "Commit failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Moved to cart."})
}
