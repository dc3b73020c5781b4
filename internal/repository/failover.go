package repository

import (
	"context"
	"sync/atomic"
	"time"

	"woodslot/internal/domain"
	"woodslot/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionRepository routes calls to primary until it errors, then to
// fallback. Primary is retried once recoveryInterval has elapsed.
type FailoverSessionRepository struct {
	primary   domain.SessionRepository
	fallback  domain.SessionRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverSessionRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverSessionRepository) record(err error) {
	if err == nil {
		if r.isDown.Swap(false) {
			r.logger.Info().Msg("primary session repository recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary session repository failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverSessionRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, id)
		r.record(err)
		if err == nil {
			return session, nil
		}
	}

	return r.fallback.GetSession(ctx, id)
}

func (r *FailoverSessionRepository) SetSession(ctx context.Context, session *models.Session, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SetSession(ctx, session, ttl)
		r.record(err)
		if err == nil {
			return nil
		}
	}

	return r.fallback.SetSession(ctx, session, ttl)
}

// DeleteSession removes the session from both stores so a session written
// during an outage cannot outlive a logout.
func (r *FailoverSessionRepository) DeleteSession(ctx context.Context, id string) error {
	if r.usePrimary() {
		err := r.primary.DeleteSession(ctx, id)
		r.record(err)
	}

	return r.fallback.DeleteSession(ctx, id)
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.record(err)
		if err == nil {
			return allowed, nil
		}
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

func (r *FailoverSessionRepository) AttemptCount(ctx context.Context, key string) (int, error) {
	if r.usePrimary() {
		count, err := r.primary.AttemptCount(ctx, key)
		r.record(err)
		if err == nil {
			return count, nil
		}
	}

	return r.fallback.AttemptCount(ctx, key)
}

// ResetRateLimit clears the key in both stores, like DeleteSession.
func (r *FailoverSessionRepository) ResetRateLimit(ctx context.Context, key string) error {
	if r.usePrimary() {
		err := r.primary.ResetRateLimit(ctx, key)
		r.record(err)
	}

	return r.fallback.ResetRateLimit(ctx, key)
}
