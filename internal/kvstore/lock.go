package kvstore

import (
	"context"
	"time"

	apperrors "job-notifier/internal/common/errors"

	"github.com/google/uuid"
)

// Locker hands out expiring named locks on top of a Store.
type Locker struct {
	store Store
}

func NewLocker(store Store) *Locker {
	return &Locker{store: store}
}

// Lock is a held lock. Release is safe to call after expiry; it never
// removes a lock acquired by someone else in the meantime.
type Lock struct {
	store Store
	key   string
	token string
}

func lockKey(name string) string {
	return "lock:" + name
}

// Acquire takes the lock or returns BATCH_ALREADY_RUNNING when it is held.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	key := lockKey(name)
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewBatchAlreadyRunningError(name)
	}
	return &Lock{store: l.store, key: key, token: token}, nil
}

// Release frees the lock and reports whether it was still held.
func (lk *Lock) Release(ctx context.Context) (bool, error) {
	return lk.store.CompareAndDelete(ctx, lk.key, lk.token)
}
