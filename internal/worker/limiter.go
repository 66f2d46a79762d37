package worker

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent bounds extraction processes across all chats.
const DefaultMaxConcurrent = 8

// Limiter is a process-wide ceiling on concurrent extractions.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter allows n concurrent holders. n <= 0 means unbounded.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		return &Limiter{}
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n))}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.sem == nil {
		return ctx.Err()
	}
	return l.sem.Acquire(ctx, 1)
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	if l.sem != nil {
		l.sem.Release(1)
	}
}
