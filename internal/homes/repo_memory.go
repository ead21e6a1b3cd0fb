package homes

import (
	"context"
	"sync"
)

// MemoryRepo stores homes in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Home
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]Home),
	}
}

// Create stores the home.
func (r *MemoryRepo) Create(ctx context.Context, home Home) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[home.ID] = home
	return nil
}

// GetByID returns a home by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, homeID string) (Home, error) {
	if err := ctx.Err(); err != nil {
		return Home{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	home, ok := r.byID[homeID]
	if !ok {
		return Home{}, ErrNotFound
	}
	return home, nil
}

var _ Repo = (*MemoryRepo)(nil)
