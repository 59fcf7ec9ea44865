package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

// MemoryUserRepository implements UserRepository over a fixed user list.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users []models.User

	// FailLookups, when set, is returned by every read.
	FailLookups error
}

// NewMemoryUserRepository creates a repository holding users.
func NewMemoryUserRepository(users ...models.User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: append([]models.User(nil), users...)}
	sort.Slice(r.users, func(i, j int) bool { return r.users[i].ID < r.users[j].ID })
	return r
}

// FindSystemUser implements UserRepository.
func (r *MemoryUserRepository) FindSystemUser(_ context.Context, preferredID int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailLookups != nil {
		return nil, r.FailLookups
	}
	for _, u := range r.users {
		if !u.IsActive {
			continue
		}
		if (preferredID > 0 && u.ID == preferredID) || (preferredID <= 0 && u.Role == models.RoleAdmin) {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNoSystemUser
}

// ListActiveByDepartment implements UserRepository.
func (r *MemoryUserRepository) ListActiveByDepartment(_ context.Context, department string, roles []string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailLookups != nil {
		return nil, r.FailLookups
	}
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	var out []models.User
	for _, u := range r.users {
		if u.IsActive && u.Department == department && allowed[u.Role] {
			out = append(out, u)
		}
	}
	return out, nil
}
