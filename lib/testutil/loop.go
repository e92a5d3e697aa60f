// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gebr-project/gebr/lib/eventloop"
)

// StartLoop runs loop on a background goroutine until the test ends.
func StartLoop(t testing.TB, loop *eventloop.Loop) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
}

// CallLoop runs fn on a running loop and waits up to five seconds for
// it to finish.
func CallLoop(t testing.TB, loop *eventloop.Loop, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := loop.Call(ctx, fn); err != nil {
		t.Fatalf("eventloop Call() error: %v", err)
	}
}

// SocketDir creates a directory under /tmp for Unix sockets and
// removes it when the test ends.
func SocketDir(t testing.TB) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "gebr-test-")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(directory) })
	return directory
}
