// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source injected into the transport.
type Clock interface {
	Now() time.Time

	// After delivers the time on the returned channel once d elapses.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d elapses. The real clock calls f on its
	// own goroutine; the fake clock calls it from Advance.
	AfterFunc(d time.Duration, f func()) *Timer

	Sleep(d time.Duration)
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the call. It returns false if f already ran or the
// timer was already stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}
