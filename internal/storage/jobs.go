package storage

import (
	"context"
	"sync"
	"time"
)

// jobBook keeps scheduled-job results and advisory locks for the
// single-process backends.
type jobBook struct {
	mu    sync.Mutex
	jobs  map[string]ScheduledJob
	locks map[int64]bool
}

func newJobBook() *jobBook {
	return &jobBook{
		jobs:  make(map[string]ScheduledJob),
		locks: make(map[int64]bool),
	}
}

func (b *jobBook) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locks[key] {
		return false, nil
	}
	b.locks[key] = true
	return true, nil
}

func (b *jobBook) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	held := b.locks[key]
	delete(b.locks, key)
	return held, nil
}

func (b *jobBook) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[name] = newScheduledJob(name, started, dur, success, errMsg)
	return nil
}

func (b *jobBook) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[name]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func newScheduledJob(name string, started time.Time, dur time.Duration, success bool, errMsg string) ScheduledJob {
	status := 0
	if success {
		status = 1
	}
	return ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
}
