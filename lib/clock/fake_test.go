// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAdvanceFiresInDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	var fired []string
	clock.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "late") })
	clock.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "early") })

	clock.Advance(50 * time.Millisecond)
	if len(fired) != 0 {
		t.Fatalf("fired %q before any deadline", fired)
	}
	clock.Advance(time.Second)
	if !slices.Equal(fired, []string{"early", "late"}) {
		t.Errorf("fired = %q, want [early late]", fired)
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", clock.PendingCount())
	}
}

func TestRearmingCallbackFiresWithinAdvance(t *testing.T) {
	clock := Fake(epoch)
	count := 0
	var poll func()
	poll = func() {
		count++
		if count < 5 {
			clock.AfterFunc(200*time.Millisecond, poll)
		}
	}
	clock.AfterFunc(200*time.Millisecond, poll)

	clock.Advance(600 * time.Millisecond)
	if count != 3 {
		t.Errorf("poll ran %d times in 600ms, want 3", count)
	}
	clock.Advance(time.Second)
	if count != 5 {
		t.Errorf("poll ran %d times, want 5", count)
	}
}

func TestCallbackSeesItsDeadline(t *testing.T) {
	clock := Fake(epoch)
	var seen []time.Time
	clock.AfterFunc(100*time.Millisecond, func() { seen = append(seen, clock.Now()) })
	clock.AfterFunc(250*time.Millisecond, func() { seen = append(seen, clock.Now()) })

	clock.Advance(time.Second)
	want := []time.Time{epoch.Add(100 * time.Millisecond), epoch.Add(250 * time.Millisecond)}
	if !slices.EqualFunc(seen, want, time.Time.Equal) {
		t.Errorf("Now() inside callbacks = %v, want %v", seen, want)
	}
	if got := clock.Now(); !got.Equal(epoch.Add(time.Second)) {
		t.Errorf("Now() after Advance = %v, want epoch+1s", got)
	}
}

func TestStop(t *testing.T) {
	clock := Fake(epoch)
	ran := false
	timer := clock.AfterFunc(time.Second, func() { ran = true })
	if !timer.Stop() {
		t.Fatal("Stop() on a pending timer = false")
	}
	if timer.Stop() {
		t.Error("second Stop() = true")
	}
	clock.Advance(2 * time.Second)
	if ran {
		t.Error("stopped timer fired")
	}
}

func TestAfterAndSleep(t *testing.T) {
	clock := Fake(epoch)
	woke := make(chan struct{})
	go func() {
		clock.Sleep(time.Minute)
		close(woke)
	}()
	clock.WaitForTimers(1)
	clock.Advance(time.Minute)
	<-woke

	if got := clock.Now(); !got.Equal(epoch.Add(time.Minute)) {
		t.Errorf("Now() = %v, want epoch+1m", got)
	}
	select {
	case <-clock.After(0):
	default:
		t.Error("After(0) did not deliver immediately")
	}
}
