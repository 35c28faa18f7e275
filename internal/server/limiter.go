package server

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrBusy is returned when every classification slot stays occupied for
// the whole wait period.
var ErrBusy = errors.New("too many concurrent uploads, please try again later")

const (
	DefaultMaxConcurrent = 4
	DefaultUploadWait    = 10 * time.Second
)

// limiter caps concurrent classifications with a semaphore.
type limiter struct {
	sem     chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

func newLimiter(maxConcurrent int, maxWait time.Duration) *limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultUploadWait
	}
	return &limiter{sem: make(chan struct{}, maxConcurrent), maxWait: maxWait}
}

// Acquire waits up to maxWait for a slot. The caller must Release on success.
func (l *limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-timer.C:
		return ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limiter) Release() {
	l.active.Add(-1)
	<-l.sem
}

func (l *limiter) Active() int { return int(l.active.Load()) }

// WaitForDrain blocks until no classification is running or ctx ends.
func (l *limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
