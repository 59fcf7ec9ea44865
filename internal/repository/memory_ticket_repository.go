package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
	"github.com/TIPA-VN/uxone-sub003/internal/utils"
)

// MemoryTicketRepository implements TicketRepository with in-memory storage.
// This is for development/testing.
type MemoryTicketRepository struct {
	mu            sync.RWMutex
	tickets       map[int64]*models.Ticket
	comments      []models.TicketComment
	nextTicketID  int64
	nextCommentID int64

	// FailWrites, when set, is returned by every write.
	FailWrites error
}

// NewMemoryTicketRepository creates an empty repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets:       make(map[int64]*models.Ticket),
		nextTicketID:  1,
		nextCommentID: 1,
	}
}

// Seed stores t as-is, assigning an ID when it has none.
func (r *MemoryTicketRepository) Seed(t models.Ticket) *models.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.nextTicketID
	}
	if t.ID >= r.nextTicketID {
		r.nextTicketID = t.ID + 1
	}
	r.tickets[t.ID] = &t
	out := t
	return &out
}

// FindLatest implements TicketRepository.
func (r *MemoryTicketRepository) FindLatest(_ context.Context, q TicketQuery) (*models.Ticket, error) {
	terms := uniqueTerms(q.SubjectTerms)
	if len(terms) == 0 {
		return nil, nil //nolint:nilnil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	email := utils.TruncateRunes(q.CustomerEmail, MaxCustomerLength)
	var best *models.Ticket
	for _, t := range r.tickets {
		if t.CustomerEmail != email || t.CreatedAt.Before(q.Since) {
			continue
		}
		title := strings.ToLower(t.Title)
		matched := false
		for _, term := range terms {
			if strings.Contains(title, term) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if best == nil || t.CreatedAt.After(best.CreatedAt) {
			best = t
		}
	}
	if best == nil {
		return nil, nil //nolint:nilnil
	}
	out := *best
	return &out, nil
}

// GetByID implements TicketRepository.
func (r *MemoryTicketRepository) GetByID(_ context.Context, id int64) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	out := *t
	return &out, nil
}

// CreateWithComment implements TicketRepository.
func (r *MemoryTicketRepository) CreateWithComment(_ context.Context, t *models.Ticket, c *models.TicketComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return r.FailWrites
	}
	for _, existing := range r.tickets {
		if existing.TicketNumber == t.TicketNumber {
			return ErrDuplicateTicketNumber
		}
	}

	t.ID = r.nextTicketID
	r.nextTicketID++
	stored := *t
	r.tickets[t.ID] = &stored

	c.TicketID = t.ID
	c.ID = r.nextCommentID
	r.nextCommentID++
	r.comments = append(r.comments, *c)
	return nil
}

// AddComment implements TicketRepository.
func (r *MemoryTicketRepository) AddComment(_ context.Context, c *models.TicketComment, reopen bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return r.FailWrites
	}
	t, ok := r.tickets[c.TicketID]
	if !ok {
		return ErrTicketNotFound
	}

	c.ID = r.nextCommentID
	r.nextCommentID++
	r.comments = append(r.comments, *c)

	if reopen && t.ReopensOnReply() {
		t.Status = models.StatusOpen
		t.UpdatedAt = c.CreatedAt
	}
	return nil
}

// MaxTicketNumber implements TicketRepository.
func (r *MemoryTicketRepository) MaxTicketNumber(_ context.Context, prefix string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var numbers []string
	for _, t := range r.tickets {
		if strings.HasPrefix(t.TicketNumber, prefix) {
			numbers = append(numbers, t.TicketNumber)
		}
	}
	if len(numbers) == 0 {
		return "", nil
	}
	sort.Slice(numbers, func(i, j int) bool {
		if len(numbers[i]) != len(numbers[j]) {
			return len(numbers[i]) > len(numbers[j])
		}
		return numbers[i] > numbers[j]
	})
	return numbers[0], nil
}

// Tickets returns copies of all stored tickets ordered by ID.
func (r *MemoryTicketRepository) Tickets() []models.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Comments returns copies of the comments on ticketID in insertion order.
func (r *MemoryTicketRepository) Comments(ticketID int64) []models.TicketComment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.TicketComment
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out
}
