package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TicketStatus is the lifecycle state of a helpdesk ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "OPEN"
	StatusInProgress TicketStatus = "IN_PROGRESS"
	StatusPending    TicketStatus = "PENDING"
	StatusResolved   TicketStatus = "RESOLVED"
	StatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority orders tickets for the responsible team.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "LOW"
	PriorityMedium TicketPriority = "MEDIUM"
	PriorityHigh   TicketPriority = "HIGH"
	PriorityUrgent TicketPriority = "URGENT"
)

// TicketCategory drives team routing.
type TicketCategory string

const (
	CategoryBug            TicketCategory = "BUG"
	CategoryFeatureRequest TicketCategory = "FEATURE_REQUEST"
	CategorySupport        TicketCategory = "SUPPORT"
	CategoryTechnicalIssue TicketCategory = "TECHNICAL_ISSUE"
	CategoryGeneral        TicketCategory = "GENERAL"
)

// ParseCategory maps a case-sensitive name to a known category.
func ParseCategory(s string) (TicketCategory, bool) {
	switch c := TicketCategory(s); c {
	case CategoryBug, CategoryFeatureRequest, CategorySupport, CategoryTechnicalIssue, CategoryGeneral:
		return c, true
	}
	return "", false
}

// ParsePriority maps a case-sensitive name to a known priority.
func ParsePriority(s string) (TicketPriority, bool) {
	switch p := TicketPriority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, true
	}
	return "", false
}

// Tags is stored as a JSON array in a text column.
type Tags []string

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("tags: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*t = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return errors.New("tags: column is not a JSON array")
	}
	*t = out
	return nil
}

// Ticket is one support thread.
type Ticket struct {
	ID            int64          `json:"id" db:"id"`
	TicketNumber  string         `json:"ticketNumber" db:"ticket_number"`
	Title         string         `json:"title" db:"title"`
	Description   string         `json:"description" db:"description"`
	Status        TicketStatus   `json:"status" db:"status"`
	Priority      TicketPriority `json:"priority" db:"priority"`
	Category      TicketCategory `json:"category" db:"category"`
	CustomerEmail string         `json:"customerEmail" db:"customer_email"`
	CustomerName  string         `json:"customerName" db:"customer_name"`
	AssignedTeam  string         `json:"assignedTeam" db:"assigned_team"`
	Tags          Tags           `json:"tags" db:"tags"`
	CreatedBy     int64          `json:"createdBy" db:"created_by"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`
	ResolvedAt    *time.Time     `json:"resolvedAt,omitempty" db:"resolved_at"`
	ClosedAt      *time.Time     `json:"closedAt,omitempty" db:"closed_at"`
}

// ReopensOnReply reports whether a customer reply moves the ticket back to OPEN.
func (t *Ticket) ReopensOnReply() bool {
	if t == nil {
		return false
	}
	return t.Status == StatusClosed || t.Status == StatusResolved
}

// AuthorType identifies who wrote a comment.
type AuthorType string

const (
	AuthorSystem   AuthorType = "SYSTEM"
	AuthorCustomer AuthorType = "CUSTOMER"
	AuthorAgent    AuthorType = "AGENT"
)

// TicketComment belongs to exactly one ticket.
type TicketComment struct {
	ID         int64      `json:"id" db:"id"`
	TicketID   int64      `json:"ticketId" db:"ticket_id"`
	Content    string     `json:"content" db:"content"`
	AuthorID   int64      `json:"authorId" db:"author_id"`
	AuthorType AuthorType `json:"authorType" db:"author_type"`
	IsInternal bool       `json:"isInternal" db:"is_internal"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}
