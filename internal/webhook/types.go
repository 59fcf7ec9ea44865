package webhook

import (
	"time"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

// Delivery outcomes reported to the Observer.
const (
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
	DeliveryDropped = "dropped"
)

// Headers set on every delivery.
const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderDelivery  = "X-Webhook-Delivery"
	HeaderSignature = "X-Webhook-Signature"
)

// Endpoint is one receiver of outbound events. An empty Events list
// subscribes to every event.
type Endpoint struct {
	URL    string
	Secret string
	Events []string
}

// Wants reports whether the endpoint subscribed to eventType.
func (e Endpoint) Wants(eventType string) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, ev := range e.Events {
		if ev == eventType || ev == "*" {
			return true
		}
	}
	return false
}

// Payload is the JSON body posted to endpoints.
type Payload struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
	Data      EventData `json:"data"`
}

// Source identifies the sending service.
type Source struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// EventData carries the ticket and, when the event has one, the comment.
type EventData struct {
	Ticket  TicketData   `json:"ticket"`
	Article *ArticleData `json:"article,omitempty"`
}

// TicketData is the outbound view of a ticket.
type TicketData struct {
	ID            int64                 `json:"id"`
	TicketNumber  string                `json:"ticketNumber"`
	Title         string                `json:"title"`
	Status        models.TicketStatus   `json:"status"`
	Priority      models.TicketPriority `json:"priority"`
	Category      models.TicketCategory `json:"category"`
	CustomerEmail string                `json:"customerEmail"`
	CustomerName  string                `json:"customerName"`
	AssignedTeam  string                `json:"assignedTeam"`
	Tags          models.Tags           `json:"tags"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// ArticleData is the outbound view of a comment. ContentHTML is the
// comment rendered from markdown and sanitized.
type ArticleData struct {
	ID          int64             `json:"id"`
	Content     string            `json:"content"`
	ContentHTML string            `json:"contentHtml"`
	AuthorType  models.AuthorType `json:"authorType"`
	IsInternal  bool              `json:"isInternal"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func ticketData(t *models.Ticket) TicketData {
	return TicketData{
		ID:            t.ID,
		TicketNumber:  t.TicketNumber,
		Title:         t.Title,
		Status:        t.Status,
		Priority:      t.Priority,
		Category:      t.Category,
		CustomerEmail: t.CustomerEmail,
		CustomerName:  t.CustomerName,
		AssignedTeam:  t.AssignedTeam,
		Tags:          t.Tags,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}
