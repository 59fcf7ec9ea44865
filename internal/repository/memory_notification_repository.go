package repository

import (
	"context"
	"sync"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

// MemoryNotificationRepository implements NotificationRepository in memory.
type MemoryNotificationRepository struct {
	mu     sync.Mutex
	items  []models.Notification
	nextID int64

	// FailFor makes Create fail for the listed user ids.
	FailFor map[int64]error
}

// NewMemoryNotificationRepository creates an empty repository.
func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{nextID: 1}
}

// Create implements NotificationRepository.
func (r *MemoryNotificationRepository) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailFor[n.UserID]; err != nil {
		return err
	}
	n.ID = r.nextID
	r.nextID++
	r.items = append(r.items, *n)
	return nil
}

// All returns copies of the stored notifications in insertion order.
func (r *MemoryNotificationRepository) All() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.items...)
}
