package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
)

// LockManager hands out the ephemeral, time-bounded ingestion locks keyed by
// app id. Locks expire on their own; release is best-effort and token
// checked. The Redis client satisfies this interface in production; the
// in-memory manager covers single-instance deployments and tests.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

type memoryLock struct {
	token   string
	expires time.Time
}

type memoryLockManager struct {
	log *logger.Logger
	mu  sync.Mutex
	m   map[string]memoryLock
}

func NewMemoryLockManager(log *logger.Logger) LockManager {
	return &memoryLockManager{
		log: log.With("service", "MemoryLockManager"),
		m:   map[string]memoryLock{},
	}
}

func (l *memoryLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.m[key]; ok && held.expires.After(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.m[key] = memoryLock{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *memoryLockManager) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.m[key]; ok && held.token == token {
		delete(l.m, key)
	}
	return nil
}
