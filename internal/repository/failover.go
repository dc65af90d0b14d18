package repository

import (
	"context"
	"sync/atomic"
	"time"

	"carwash/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverLockRepository prefers the primary (Redis) and falls back to the
// in-memory repository when it errors, retrying the primary after a minute.
type FailoverLockRepository struct {
	primary   domain.LockRepository
	fallback  domain.LockRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed primary attempt
}

func NewFailoverLockRepository(primary, fallback domain.LockRepository, logger *zerolog.Logger) *FailoverLockRepository {
	return &FailoverLockRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverLockRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary lock repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverLockRepository) primaryUsable() bool {
	if !r.isDown.Load() {
		return true
	}
	// Probe the primary again after a minute of downtime.
	if time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		r.isDown.Store(false)
		return true
	}
	return false
}

func (r *FailoverLockRepository) AcquireActionLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	if r.primaryUsable() {
		ok, err := r.primary.AcquireActionLock(ctx, bookingID, ttl)
		if err == nil {
			return ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.AcquireActionLock(ctx, bookingID, ttl)
}

func (r *FailoverLockRepository) ReleaseActionLock(ctx context.Context, bookingID string) error {
	if r.primaryUsable() {
		err := r.primary.ReleaseActionLock(ctx, bookingID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ReleaseActionLock(ctx, bookingID)
}

func (r *FailoverLockRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.primaryUsable() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
