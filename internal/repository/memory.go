package repository

import (
	"context"
	"sync"
	"time"

	"woodslot/internal/models"
)

// MemorySessionRepository keeps sessions in process. It serves as the
// fallback when Redis is unavailable and as the store when none is configured.
type MemorySessionRepository struct {
	sessions   sync.Map
	rateLimits sync.Map
	mu         sync.Mutex
	now        func() time.Time
}

type sessionEntry struct {
	session   models.Session
	expiresAt time.Time
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{now: time.Now}
}

func (r *MemorySessionRepository) GetSession(_ context.Context, id string) (*models.Session, error) {
	val, ok := r.sessions.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(*sessionEntry)
	if !r.now().Before(entry.expiresAt) {
		r.sessions.Delete(id)
		return nil, nil
	}
	session := entry.session
	return &session, nil
}

func (r *MemorySessionRepository) SetSession(_ context.Context, session *models.Session, ttl time.Duration) error {
	r.sessions.Store(session.ID, &sessionEntry{
		session:   *session,
		expiresAt: r.now().Add(ttl),
	})
	return nil
}

func (r *MemorySessionRepository) DeleteSession(_ context.Context, id string) error {
	r.sessions.Delete(id)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}

func (r *MemorySessionRepository) AttemptCount(_ context.Context, key string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	val, ok := r.rateLimits.Load(key)
	if !ok {
		return 0, nil
	}
	entry := val.(*rateLimitEntry)
	if r.now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.count, nil
}

func (r *MemorySessionRepository) ResetRateLimit(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rateLimits.Delete(key)
	return nil
}
