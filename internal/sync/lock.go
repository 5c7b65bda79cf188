package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/store"
)

// ErrSyncInProgress is returned when another pump or clear holds the sync
// lock, in this process or in another instance sharing the database.
var ErrSyncInProgress = errors.New("sync already in progress")

// DefaultLockTTL bounds how long a crashed holder can block other
// instances. Live holders renew the lease at half this interval.
const DefaultLockTTL = 10 * time.Minute

// syncLock pairs a process-local mutex with a lease row in the store.
type syncLock struct {
	mu     sync.Mutex
	store  store.Store
	owner  string
	ttl    time.Duration
	logger *slog.Logger
}

// acquire takes the mutex and the lease. The returned release stops lease
// renewal, deletes the lease and unlocks the mutex.
func (l *syncLock) acquire(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	ok, err := l.store.AcquireLock(ctx, store.SyncLockName, l.owner, l.ttl)
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("acquire sync lease: %w", err)
	}
	if !ok {
		l.mu.Unlock()
		return nil, ErrSyncInProgress
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.renew(context.WithoutCancel(ctx), stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := l.store.ReleaseLock(rctx, store.SyncLockName, l.owner); err != nil {
				l.logger.Warn("release sync lease failed", "owner", l.owner, "err", err)
			}
			l.mu.Unlock()
		})
	}, nil
}

func (l *syncLock) renew(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ok, err := l.store.AcquireLock(ctx, store.SyncLockName, l.owner, l.ttl)
			if err != nil || !ok {
				l.logger.Warn("renew sync lease failed", "owner", l.owner, "acquired", ok, "err", err)
			}
		}
	}
}
