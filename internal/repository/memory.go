package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryLockRepository is the in-process fallback used when Redis is
// unavailable. Locks are only visible within one process, which is still
// enough to stop double-clicks on the same dashboard.
type MemoryLockRepository struct {
	locks sync.Map

	mu         sync.Mutex
	rateLimits map[string]*rateLimitEntry
}

func NewMemoryLockRepository() *MemoryLockRepository {
	return &MemoryLockRepository{
		rateLimits: make(map[string]*rateLimitEntry),
	}
}

func (r *MemoryLockRepository) AcquireActionLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	for {
		actual, loaded := r.locks.LoadOrStore(bookingID, expiresAt)
		if !loaded {
			return true, nil
		}
		if now.Before(actual.(time.Time)) {
			return false, nil
		}
		// Expired lock; replace it and retry the claim.
		r.locks.Delete(bookingID)
	}
}

func (r *MemoryLockRepository) ReleaseActionLock(ctx context.Context, bookingID string) error {
	r.locks.Delete(bookingID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryLockRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
		r.rateLimits[key] = entry
	} else {
		entry.count++
	}

	return entry.count <= limit, nil
}
