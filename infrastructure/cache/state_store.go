package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"linkedpost/domain/model"
)

const stateKeyPrefix = "linkedin:oauth-state:"

// StateStore keeps OAuth state values in Redis until the callback consumes them.
type StateStore struct {
	client redis.Cmdable
}

func NewStateStore(client redis.Cmdable) *StateStore {
	return &StateStore{client: client}
}

func (s *StateStore) Put(ctx context.Context, state, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, stateKeyPrefix+state, userID, ttl).Err()
}

func (s *StateStore) Take(ctx context.Context, state string) (string, error) {
	userID, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

type memoryState struct {
	userID    string
	expiresAt time.Time
}

// MemoryStateStore is used when no Redis is configured. States do not survive
// a restart and are not shared between replicas.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]memoryState
	now    func() time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: map[string]memoryState{}, now: time.Now}
}

func (s *MemoryStateStore) Put(_ context.Context, state, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.states {
		if !now.Before(v.expiresAt) {
			delete(s.states, k)
		}
	}
	s.states[state] = memoryState{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStateStore) Take(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.states[state]
	delete(s.states, state)
	if !ok || !s.now().Before(v.expiresAt) {
		return "", model.ErrNotFound
	}
	return v.userID, nil
}
