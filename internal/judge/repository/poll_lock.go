package repository

import (
	"context"
	"time"

	"codearena/internal/common/cache"
	pkgerrors "codearena/pkg/errors"
)

const pollLockPrefix = "judge:poll:lock:"

// PollLock serializes polls of one job across orchestrator instances.
type PollLock struct {
	locks cache.LockOps
	ttl   time.Duration
}

func NewPollLock(locks cache.LockOps, ttl time.Duration) *PollLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PollLock{locks: locks, ttl: ttl}
}

// Acquire returns ok=false when another instance holds the job. release must be
// called once when ok is true.
func (l *PollLock) Acquire(ctx context.Context, jobID string) (release func(), ok bool, err error) {
	token, ok, err := l.locks.TryLock(ctx, pollLockPrefix+jobID, l.ttl)
	if err != nil {
		return nil, false, pkgerrors.Wrapf(err, pkgerrors.LockFailed, "lock job %s failed", jobID)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.locks.Unlock(ctx, pollLockPrefix+jobID, token)
	}, true, nil
}
