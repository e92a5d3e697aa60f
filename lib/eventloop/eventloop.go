// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventloop serializes work onto a single goroutine.
//
// Every piece of client state (the transport session, the worker
// directory, the job registry) is owned by one Loop and touched only
// from functions the Loop runs. Goroutines that block on I/O post
// their results instead of locking shared state.
package eventloop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Call when the loop is no longer running.
var ErrStopped = errors.New("eventloop: stopped")

// Loop is an unbounded FIFO of functions run one at a time by Run.
// Post never blocks, so a reader goroutine can always hand off a
// decoded frame even while the loop is busy.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	notify  chan struct{}
	done    chan struct{}
}

// New returns a Loop that is not yet running.
func New() *Loop {
	return &Loop{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues fn. It returns false if the loop has stopped, in which
// case fn will never run.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// Run executes queued functions until ctx is cancelled, then marks
// the loop stopped. Functions still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.notify:
		}
	}
}

// Drain runs every queued function on the calling goroutine, including
// functions queued while draining, and returns how many ran. It is for
// callers that drive the loop by hand, such as one-shot commands and
// tests; it must not race with Run.
func (l *Loop) Drain() int {
	count := 0
	for {
		fn, ok := l.next()
		if !ok {
			return count
		}
		fn()
		count++
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Call runs fn on the loop and waits for it to finish. It must not be
// called from a function the loop is running.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Pending returns the number of queued functions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
	close(l.done)
}
