package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
)

//
// --- Contact Messages ---
//

// ContactInput is the body of POST /api/contact
type ContactInput struct {
	Name    string `json:"name" form:"name" binding:"required,max=150"`
	Email   string `json:"email" form:"email" binding:"required,email"`
	Subject string `json:"subject" form:"subject" binding:"required,max=200"`
	Message string `json:"message" form:"message" binding:"required"`
}

// Normalize trims every field.
func (in *ContactInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
}

// Validate enforces the 10..2000 character message body.
func (in *ContactInput) Validate() error {
	if in.Name == "" {
		return &models.ValidationError{Field: "name", Message: "is required"}
	}
	if in.Subject == "" {
		return &models.ValidationError{Field: "subject", Message: "is required"}
	}
	if n := utf8.RuneCountInString(in.Message); n < 10 || n > 2000 {
		return &models.ValidationError{Field: "message", Message: "must be between 10 and 2000 characters"}
	}
	return nil
}

// SubmitContact is the handler for POST /api/contact
// Guests may write in; a signed-in user is linked to the message.
func (h *Handlers) SubmitContact(c *gin.Context) {
	var input ContactInput
	if err := c.ShouldBind(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	input.Normalize()
	if err := input.Validate(); err != nil {
		failValidation(c, err)
		return
	}

	var userID sql.NullInt64
	if id := currentUserID(c); id > 0 {
		userID = sql.NullInt64{Int64: id, Valid: true}
	}

	res, err := h.DB.ExecContext(c.Request.Context(), `
		INSERT INTO contact_messages (user_id, name, email, subject, message, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, input.Name, input.Email, input.Subject, input.Message, models.MessageNew)
	if err != nil {
		serverError(c, err, "Failed to send message")
		return
	}
	id, _ := res.LastInsertId()

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Thank you for reaching out. We will get back to you soon.",
		"message_id": id,
	})
}

// loadReplies attaches replies to the given messages, oldest first.
func loadReplies(ctx context.Context, q database.Querier, messages []*models.ContactMessage) error {
	if len(messages) == 0 {
		return nil
	}
	byID := make(map[int64]*models.ContactMessage, len(messages))
	args := make([]any, 0, len(messages))
	for _, m := range messages {
		m.Replies = []models.MessageReply{}
		byID[m.ID] = m
		args = append(args, m.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, message_id, user_id, is_admin, body, created_at
		FROM message_replies
		WHERE message_id IN (`+placeholders(len(args))+`)
		ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r models.MessageReply
		if err := rows.Scan(&r.ID, &r.MessageID, &r.UserID, &r.IsAdmin, &r.Body, &r.CreatedAt); err != nil {
			return err
		}
		if m, ok := byID[r.MessageID]; ok {
			m.Replies = append(m.Replies, r)
		}
	}
	return rows.Err()
}

const messageColumns = "id, user_id, name, email, subject, message, status, created_at, updated_at"

func scanMessages(rows *sql.Rows) ([]*models.ContactMessage, error) {
	messages := []*models.ContactMessage{}
	for rows.Next() {
		var m models.ContactMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// GetMyMessages is the handler for GET /api/messages
func (h *Handlers) GetMyMessages(c *gin.Context) {
	ctx := c.Request.Context()
	rows, err := h.DB.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM contact_messages WHERE user_id = ? ORDER BY updated_at DESC, id DESC LIMIT 100",
		currentUserID(c))
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
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages})
}

// ReplyInput is the body of a message reply.
type ReplyInput struct {
	Body string `json:"body" binding:"required,max=2000"`
}

// errMessageClosed is returned when replying to a closed thread.
var errMessageClosed = errors.New("message closed")

// addReply appends a reply to a thread under lock and returns the thread
// owner, if any.
func addReply(ctx context.Context, tx *sql.Tx, messageID, userID int64, ownerID int64, isAdmin bool, body string) (sql.NullInt64, string, error) {
	query := "SELECT user_id, status, subject FROM contact_messages WHERE id = ?"
	args := []any{messageID}
	if ownerID > 0 {
		query += " AND user_id = ?"
		args = append(args, ownerID)
	}
	var (
		owner   sql.NullInt64
		status  string
		subject string
	)
	if err := tx.QueryRowContext(ctx, query+" FOR UPDATE", args...).Scan(&owner, &status, &subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return owner, "", models.ErrNotFound
		}
		return owner, "", err
	}
	if status == models.MessageClosed {
		return owner, subject, errMessageClosed
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO message_replies (message_id, user_id, is_admin, body) VALUES (?, ?, ?, ?)",
		messageID, userID, isAdmin, body); err != nil {
		return owner, subject, err
	}

	// An admin answer marks the thread replied; a customer follow-up reopens it.
	next := models.MessageNew
	if isAdmin {
		next = models.MessageReplied
	}
	if _, err := tx.ExecContext(ctx, "UPDATE contact_messages SET status = ? WHERE id = ?", next, messageID); err != nil {
		return owner, subject, err
	}
	return owner, subject, nil
}

// replyError maps addReply failures to responses.
func replyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		fail(c, http.StatusNotFound, "Message not found.")
	case errors.Is(err, errMessageClosed):
		fail(c, http.StatusConflict, "This conversation has been closed.")
	default:
		serverError(c, err, "Failed to send reply")
	}
}

// ReplyToMessage is the handler for POST /api/messages/:id/replies
func (h *Handlers) ReplyToMessage(c *gin.Context) {
	userID := currentUserID(c)
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

	if _, _, err := addReply(ctx, tx, messageID, userID, userID, false, strings.TrimSpace(input.Body)); err != nil {
		replyError(c, err)
		return
	}
	if err := tx.Commit(); err != nil {
		serverError(c, err, "Failed to send reply")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Reply sent."})
}
