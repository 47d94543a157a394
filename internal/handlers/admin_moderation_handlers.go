package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
)

//
// --- Admin: Contact Messages ---
//

func validMessageStatus(s string) bool {
	return s == models.MessageNew || s == models.MessageReplied || s == models.MessageClosed
}

// GetAdminMessages is the handler for GET /api/admin/messages?status=
func (h *Handlers) GetAdminMessages(c *gin.Context) {
	ctx := c.Request.Context()
	status := c.Query("status")
	if status != "" && !validMessageStatus(status) {
		fail(c, http.StatusBadRequest, "Unknown message status.")
		return
	}
	page, perPage := pageParams(c, 20, 100)

	where := "1 = 1"
	args := []any{}
	if status != "" {
		where = "status = ?"
		args = append(args, status)
	}

	var total int
	if err := h.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM contact_messages WHERE "+where, args...).Scan(&total); err != nil {
		serverError(c, err, "Failed to count messages")
		return
	}

	rows, err := h.DB.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM contact_messages WHERE "+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		serverError(c, err, "Failed to load messages")
		return
	}
	messages, err := scanMessages(rows)
	rows.Close()
	if err != nil {
		serverError(c, err, "Failed to load messages")
		return
	}
	if err := loadReplies(ctx, h.DB, messages); err != nil {
		serverError(c, err, "Failed to load replies")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages, "total": total, "page": page, "pages": totalPages(total, perPage)})
}

// AdminReplyToMessage is the handler for POST /api/admin/messages/:id/replies
// The thread becomes "replied" and a registered sender is notified.
func (h *Handlers) AdminReplyToMessage(c *gin.Context) {
	adminID := currentUserID(c)
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var input ReplyInput
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Body) == "" {
		failField(c, http.StatusUnprocessableEntity, "body", "Reply cannot be empty.")
		return
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		serverError(c, err, "Failed to start transaction")
		return
	}
	defer tx.Rollback()

	owner, subject, err := addReply(ctx, tx, messageID, adminID, 0, true, strings.TrimSpace(input.Body))
	if err != nil {
		replyError(c, err)
		return
	}
	if owner.Valid {
		if err := h.AddNotification(ctx, tx, owner.Int64, models.NotificationMessage,
			fmt.Sprintf("We replied to your message %q.", subject), "/messages"); err != nil {
			serverError(c, err, "Failed to create notification")
			return
		}
	}
	if err := tx.Commit(); err != nil {
		serverError(c, err, "Failed to send reply")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Reply sent.", "status": models.MessageReplied})
}

// CloseMessage is the handler for PATCH /api/admin/messages/:id/close
func (h *Handlers) CloseMessage(c *gin.Context) {
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.DB.ExecContext(c.Request.Context(),
		"UPDATE contact_messages SET status = ? WHERE id = ?", models.MessageClosed, messageID)
	if err != nil {
		serverError(c, err, "Failed to close message")
		return
	}
	if !h.rowsOrExists(c, res, "SELECT COUNT(*) FROM contact_messages WHERE id = ?", messageID) {
		fail(c, http.StatusNotFound, "Message not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Conversation closed.", "status": models.MessageClosed})
}

//
// --- Admin: Review Moderation ---
//

// GetAdminReviews is the handler for GET /api/admin/reviews?status=
func (h *Handlers) GetAdminReviews(c *gin.Context) {
	status := c.DefaultQuery("status", models.ReviewPending)
	if status != models.ReviewPending && status != models.ReviewApproved && status != models.ReviewRejected {
		fail(c, http.StatusBadRequest, "Unknown review status.")
		return
	}

	rows, err := h.DB.QueryContext(c.Request.Context(), `
		SELECT r.id, r.product_id, r.user_id, r.rating, r.comment, r.status, r.created_at, u.username, p.name
		FROM product_reviews r
		JOIN users u ON u.id = r.user_id
		JOIN products p ON p.id = r.product_id
		WHERE r.status = ?
		ORDER BY r.created_at ASC, r.id ASC
		LIMIT 200`, status)
	if err != nil {
		serverError(c, err, "Failed to load reviews")
		return
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Comment, &r.Status, &r.CreatedAt, &r.Username, &r.ProductName); err != nil {
			serverError(c, err, "Failed to scan review")
			return
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		serverError(c, err, "Failed to load reviews")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reviews": reviews})
}

// ModerateReviewInput is the body of PATCH /api/admin/reviews/:id
type ModerateReviewInput struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

// ModerateReview is the handler for PATCH /api/admin/reviews/:id
func (h *Handlers) ModerateReview(c *gin.Context) {
	reviewID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input ModerateReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		failField(c, http.StatusUnprocessableEntity, "status", "Status must be approved or rejected.")
		return
	}
	ctx := c.Request.Context()

	res, err := h.DB.ExecContext(ctx, "UPDATE product_reviews SET status = ? WHERE id = ?", input.Status, reviewID)
	if err != nil {
		serverError(c, err, "Failed to update review")
		return
	}
	if !h.rowsOrExists(c, res, "SELECT COUNT(*) FROM product_reviews WHERE id = ?", reviewID) {
		fail(c, http.StatusNotFound, "Review not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Review " + input.Status + ".", "status": input.Status})
}
