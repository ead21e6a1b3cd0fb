package homes

import "context"

// Repo defines persistence operations for homes.
type Repo interface {
	Create(ctx context.Context, home Home) error
	GetByID(ctx context.Context, homeID string) (Home, error)
}
