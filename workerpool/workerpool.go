// Package workerpool offloads blocking store calls onto a bounded pool of
// goroutines so that request-handling goroutines never block on disk I/O
// directly, mirroring original_source/src/routes.rs's use of
// tokio::task::spawn_blocking under a cooperative scheduler.
package workerpool

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/zama-ai/decryptiondb/apierr"
)

// Pool bounds how many blocking calls may run concurrently.
type Pool struct {
	sem *semaphore.Weighted
}

// New creates a Pool that allows up to size concurrent blocking calls.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

type result[T any] struct {
	value T
	err   error
}

// Submit runs fn on a dedicated goroutine once a pool slot is free and
// waits for either its result or ctx's cancellation, whichever comes
// first.
//
// If ctx is cancelled before fn returns, Submit returns immediately with
// an Unavailable error and fn's eventual result is discarded; fn itself is
// not interrupted; it runs to completion and releases its slot. This is
// sound because store operations are idempotent at the key granularity, so
// an abandoned write either lands cleanly or is harmlessly superseded by
// whatever the caller retries next.
//
// If the pool has no free slot and ctx is cancelled while waiting for one,
// Submit returns an Unavailable error without ever calling fn.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, apierr.Wrap(apierr.Unavailable, "worker pool unavailable", err)
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn()
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, apierr.Wrap(apierr.Unavailable, "request cancelled while awaiting worker", ctx.Err())
	}
}
