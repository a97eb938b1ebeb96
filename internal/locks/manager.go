// Package locks provides distributed locking with Redis as the coordination
// backend. The bridge takes one lock per table around every pipeline run so
// that several processes sharing a schedule never export the same rows twice.
//
// Locks are acquired with a random token, renewed in the background at a third
// of their TTL and released only while the token still matches. A lock whose
// renewal fails is considered lost; Lost() is closed so that the holder can
// notice.
//
// Example usage:
//
//	manager := locks.NewManager(redisClient, logger)
//	lock, err := manager.AcquireLock(ctx, "baserow-bridge:table:42", 2*time.Minute)
//	if errors.Is(err, locks.ErrLockHeld) {
//		return // another process is running
//	}
//	defer lock.Release(ctx)
package locks

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"baserow-bridge/internal/common/logging"
)

// ErrLockHeld is returned by AcquireLock when another holder owns the key.
var ErrLockHeld = stderrors.New("lock already held by another process")

// RedisLockClient defines the interface that Manager needs from Redis for lock operations
type RedisLockClient interface {
	AcquireLock(ctx context.Context, key, token string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	ExtendLock(ctx context.Context, key, token string, expiration time.Duration) (bool, error)
}

// Lock is a held distributed lock.
type Lock interface {
	// Key returns the unique identifier for this lock.
	Key() string
	// Release stops renewal and frees the key. Safe to call more than once.
	Release(ctx context.Context) error
	// Lost is closed when renewal fails and the lock can no longer be trusted.
	Lost() <-chan struct{}
}

// Manager hands out locks backed by a RedisLockClient.
//
// Manager is safe for concurrent use by multiple goroutines.
type Manager struct {
	redis  RedisLockClient
	logger logging.Logger
}

// NewManager creates a new distributed lock manager using the provided Redis client.
func NewManager(client RedisLockClient, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		redis:  client,
		logger: logger.WithFields(logging.String("component", "locks")),
	}
}

// AcquireLock tries once to take key for expiration. It fails with
// ErrLockHeld when the key is owned elsewhere; the returned Lock renews itself
// until released.
func (m *Manager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	token := uuid.NewString()

	acquired, err := m.redis.AcquireLock(ctx, key, token, expiration)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrLockHeld
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	lock := &redisLock{
		manager:    m,
		key:        key,
		token:      token,
		expiration: expiration,
		cancel:     cancel,
		lost:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go lock.renew(renewCtx)

	m.logger.Debug("Lock acquired", logging.String("key", key), logging.Duration("ttl", expiration))
	return lock, nil
}

type redisLock struct {
	manager    *Manager
	key        string
	token      string
	expiration time.Duration
	cancel     context.CancelFunc
	lost       chan struct{}
	done       chan struct{}
	once       sync.Once
}

func (l *redisLock) Key() string {
	return l.key
}

func (l *redisLock) Lost() <-chan struct{} {
	return l.lost
}

func (l *redisLock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		l.cancel()
		<-l.done
		err = l.manager.redis.ReleaseLock(ctx, l.key, l.token)
		l.manager.logger.Debug("Lock released", logging.String("key", l.key))
	})
	return err
}

// renew extends the lock at a third of its TTL, with a floor of 100ms.
func (l *redisLock) renew(ctx context.Context) {
	defer close(l.done)

	interval := l.expiration / 3
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			ok, err := l.manager.redis.ExtendLock(extendCtx, l.key, l.token, l.expiration)
			cancel()

			if ctx.Err() != nil {
				return
			}
			if err != nil || !ok {
				l.manager.logger.Warn("Lock lost",
					logging.String("key", l.key),
					logging.Any("error", err),
				)
				close(l.lost)
				return
			}
		}
	}
}
