// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only when Advance is called.
// It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*waiter
	changed *sync.Cond
}

type waiter struct {
	deadline time.Time
	channel  chan time.Time
	callback func()
	done     bool
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	channel := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.addLocked(&waiter{deadline: c.current.Add(d), channel: channel})
	return channel
}

// AfterFunc registers f to run from Advance. A non-positive d runs f
// before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{}
	}
	c.mu.Lock()
	entry := &waiter{deadline: c.current.Add(d), callback: f}
	c.addLocked(entry)
	c.mu.Unlock()
	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if entry.done {
			return false
		}
		entry.done = true
		return true
	}}
}

func (c *FakeClock) Sleep(d time.Duration) { <-c.After(d) }

func (c *FakeClock) addLocked(entry *waiter) {
	c.waiters = append(c.waiters, entry)
	c.changed.Broadcast()
}

// Advance moves time forward by d and fires every waiter whose
// deadline has passed, earliest first. The clock steps to each
// waiter's deadline before firing it, so a callback that registers a
// new waiter measures from that deadline; the new waiter fires too if
// it falls due within the advanced time. Callbacks run on the calling
// goroutine.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		entry := c.takeNext(target)
		if entry == nil {
			break
		}
		if entry.callback != nil {
			entry.callback()
		} else {
			entry.channel <- entry.deadline
		}
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()
}

// takeNext removes the earliest waiter due at or before target and
// moves the clock to its deadline. Waiters with equal deadlines are
// taken in registration order.
func (c *FakeClock) takeNext(target time.Time) *waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiters = slices.DeleteFunc(c.waiters, func(entry *waiter) bool { return entry.done })
	next := -1
	for index, entry := range c.waiters {
		if entry.deadline.After(target) {
			continue
		}
		if next < 0 || entry.deadline.Before(c.waiters[next].deadline) {
			next = index
		}
	}
	if next < 0 {
		return nil
	}
	entry := c.waiters[next]
	c.waiters = slices.Delete(c.waiters, next, next+1)
	entry.done = true
	if entry.deadline.After(c.current) {
		c.current = entry.deadline
	}
	return entry
}

// PendingCount returns the number of waiters that have not fired or
// been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

// WaitForTimers blocks until at least n waiters are pending. Tests use
// it to avoid advancing before a goroutine has registered its timer.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, entry := range c.waiters {
		if !entry.done {
			count++
		}
	}
	return count
}
