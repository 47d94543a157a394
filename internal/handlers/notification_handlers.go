package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
)

//
// --- Notification Handlers ---
//

// AddNotification is an internal helper function to create new notifications.
// Pass the surrounding transaction so the notification commits with the
// change it announces.
func (h *Handlers) AddNotification(ctx context.Context, q database.Querier, userID int64, notifType, message, link string) error {
	var nullLink sql.NullString
	if link != "" {
		nullLink = sql.NullString{String: link, Valid: true}
	}
	if notifType == "" {
		notifType = models.NotificationGeneral
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, message, link, is_read)
		VALUES (?, ?, ?, ?, 0)`,
		userID, notifType, message, nullLink)
	if err != nil {
		return fmt.Errorf("failed to add notification: %w", err)
	}
	return nil
}

// GetMyNotifications is the handler for GET /api/notifications
// Unread first, then newest, capped at 50.
func (h *Handlers) GetMyNotifications(c *gin.Context) {
	rows, err := h.DB.QueryContext(c.Request.Context(), `
		SELECT id, user_id, type, message, link, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY is_read ASC, created_at DESC, id DESC
		LIMIT 50`, currentUserID(c))
	if err != nil {
		serverError(c, err, "Database query failed")
		return
	}
	defer rows.Close()

	notifications := []*models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			serverError(c, err, "Failed to scan notification row")
			return
		}
		n.LinkURL = n.Link.String
		notifications = append(notifications, &n)
	}
	if err = rows.Err(); err != nil {
		serverError(c, err, "Error iterating notification rows")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": notifications})
}

// GetUnreadCount is the handler for GET /api/notifications/unread-count
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	var count int
	err := h.DB.QueryRowContext(c.Request.Context(),
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0", currentUserID(c)).Scan(&count)
	if err != nil {
		serverError(c, err, "Failed to count notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

// MarkNotificationAsRead is the handler for PATCH /api/notifications/:id/read
func (h *Handlers) MarkNotificationAsRead(c *gin.Context) {
	notificationID, ok := paramID(c, "id")
	if !ok {
		return
	}

	// Owner check is part of the WHERE so nobody can touch another user's rows.
	var exists int
	err := h.DB.QueryRowContext(c.Request.Context(),
		"SELECT COUNT(*) FROM notifications WHERE id = ? AND user_id = ?", notificationID, currentUserID(c)).Scan(&exists)
	if err != nil {
		serverError(c, err, "Failed to update notification")
		return
	}
	if exists == 0 {
		fail(c, http.StatusNotFound, "Notification not found.")
		return
	}

	if _, err := h.DB.ExecContext(c.Request.Context(),
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?", notificationID, currentUserID(c)); err != nil {
		serverError(c, err, "Failed to update notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification marked as read."})
}

// MarkAllNotificationsAsRead is the handler for PATCH /api/notifications/read-all
func (h *Handlers) MarkAllNotificationsAsRead(c *gin.Context) {
	res, err := h.DB.ExecContext(c.Request.Context(),
		"UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0", currentUserID(c))
	if err != nil {
		serverError(c, err, "Failed to update notifications")
		return
	}
	n, _ := res.RowsAffected()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "All notifications marked as read.", "updated": n})
}

// DeleteNotification is the handler for DELETE /api/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	notificationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.DB.ExecContext(c.Request.Context(),
		"DELETE FROM notifications WHERE id = ? AND user_id = ?", notificationID, currentUserID(c))
	if err != nil {
		serverError(c, err, "Failed to delete notification")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fail(c, http.StatusNotFound, "Notification not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification deleted."})
}
