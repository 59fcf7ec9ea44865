package models

import "time"

// Notification types emitted by the email pipeline.
const (
	NotificationTicketCreated = "TICKET_CREATED"
	NotificationTicketReply   = "TICKET_REPLY"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	Type      string    `json:"type" db:"type"`
	Link      string    `json:"link" db:"link"`
	IsRead    bool      `json:"isRead" db:"is_read"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
