package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// RunLockRepository marks threads that have a run in flight. It is process local;
// a multi-instance deployment still relies on the provider rejecting a second
// active run on the same thread.
type RunLockRepository struct {
	cache *cache.Cache

	// Serializes the check and delete in Release against Acquire.
	mu sync.Mutex
}

// NewRunLockRepository expires forgotten locks after ttl so a crashed turn cannot wedge a thread.
func NewRunLockRepository(ttl time.Duration) *RunLockRepository {
	cleanup := ttl
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &RunLockRepository{
		cache: cache.New(ttl, cleanup),
	}
}

// Acquire returns the holder token, or false when the thread is already locked.
func (r *RunLockRepository) Acquire(threadID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token := uuid.NewString()
	if err := r.cache.Add(threadID, token, cache.DefaultExpiration); err != nil {
		return "", false
	}
	return token, true
}

// Release unlocks the thread only while token still holds it. A holder that
// outlived the TTL must not free a lock taken after it.
func (r *RunLockRepository) Release(threadID, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, found := r.cache.Get(threadID)
	if !found || current.(string) != token {
		return false
	}
	r.cache.Delete(threadID)
	return true
}

func (r *RunLockRepository) IsLocked(threadID string) bool {
	_, found := r.cache.Get(threadID)
	return found
}
