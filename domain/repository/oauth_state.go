package repository

import (
	"context"
	"time"
)

// IOAuthState remembers which user started an OAuth round trip.
type IOAuthState interface {
	Put(ctx context.Context, state, userID string, ttl time.Duration) error
	// Take returns the owner of state and forgets it. Unknown or expired
	// states yield model.ErrNotFound.
	Take(ctx context.Context, state string) (string, error)
}
