package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
)

//
// --- Product Reviews ---
//

func (h *Handlers) approvedReviews(ctx context.Context, productID int64) ([]models.Review, error) {
	rows, err := h.DB.QueryContext(ctx, `
		SELECT r.id, r.product_id, r.user_id, r.rating, r.comment, r.status, r.created_at, u.username
		FROM product_reviews r JOIN users u ON u.id = r.user_id
		WHERE r.product_id = ? AND r.status = ?
		ORDER BY r.created_at DESC, r.id DESC`, productID, models.ReviewApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Comment, &r.Status, &r.CreatedAt, &r.Username); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// hasDeliveredPurchase reports whether the user received the product in a
// delivered order.
func hasDeliveredPurchase(ctx context.Context, q database.Querier, userID, productID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM orders o JOIN order_items oi ON oi.order_id = o.id
		WHERE o.user_id = ? AND o.status = ? AND oi.product_id = ?`,
		userID, models.OrderDelivered, productID).Scan(&n)
	return n > 0, err
}

// CreateReviewInput is the body of POST /api/products/:id/reviews
type CreateReviewInput struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

// CreateReview is the handler for POST /api/products/:id/reviews
// Reviews wait for moderation before they are shown.
func (h *Handlers) CreateReview(c *gin.Context) {
	userID := currentUserID(c)
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var input CreateReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		failField(c, http.StatusUnprocessableEntity, "rating", "Rating must be between 1 and 5.")
		return
	}

	// 1. Verified purchase
	bought, err := hasDeliveredPurchase(ctx, h.DB, userID, productID)
	if err != nil {
		serverError(c, err, "Failed to verify purchase")
		return
	}
	if !bought {
		fail(c, http.StatusForbidden, "You can only review products from a delivered order.")
		return
	}

	// 2. Insert; the unique key rejects a second review
	res, err := h.DB.ExecContext(ctx, `
		INSERT INTO product_reviews (product_id, user_id, rating, comment, status)
		VALUES (?, ?, ?, ?, ?)`,
		productID, userID, input.Rating, strings.TrimSpace(input.Comment), models.ReviewPending)
	if err != nil {
		if database.IsDuplicateKey(err) {
			fail(c, http.StatusConflict, "You have already reviewed this product.")
			return
		}
		serverError(c, err, "Failed to save review")
		return
	}
	id, _ := res.LastInsertId()

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"message":   "Thank you! Your review will appear once approved.",
		"review_id": id,
		"status":    models.ReviewPending,
	})
}
