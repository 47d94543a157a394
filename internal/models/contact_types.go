package models

import (
	"database/sql"
	"time"
)

// Contact message statuses
const (
	MessageNew     = "new"
	MessageReplied = "replied"
	MessageClosed  = "closed"
)

// ContactMessage is the model for the 'contact_messages' table
type ContactMessage struct {
	ID        int64         `json:"id" db:"id"`
	UserID    sql.NullInt64 `json:"-" db:"user_id"`
	Name      string        `json:"name" db:"name"`
	Email     string        `json:"email" db:"email"`
	Subject   string        `json:"subject" db:"subject"`
	Message   string        `json:"message" db:"message"`
	Status    string        `json:"status" db:"status"`
	CreatedAt time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time     `json:"updatedAt" db:"updated_at"`

	Replies []MessageReply `json:"replies,omitempty" db:"-"`
}

// MessageReply is the model for the 'message_replies' table
type MessageReply struct {
	ID        int64         `json:"id" db:"id"`
	MessageID int64         `json:"messageId" db:"message_id"`
	UserID    sql.NullInt64 `json:"-" db:"user_id"`
	IsAdmin   bool          `json:"isAdmin" db:"is_admin"`
	Body      string        `json:"body" db:"body"`
	CreatedAt time.Time     `json:"createdAt" db:"created_at"`
}
