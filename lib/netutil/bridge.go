// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"io"
	"net"
)

// BridgeConnections copies bytes in both directions between a and b.
// It returns when either direction finishes, after closing both
// connections so the other copy unblocks. Normal teardown errors are
// reported as nil.
func BridgeConnections(a, b net.Conn) error {
	done := make(chan error, 2)
	go func() {
		_, err := io.Copy(b, a)
		done <- err
	}()
	go func() {
		_, err := io.Copy(a, b)
		done <- err
	}()

	first := <-done
	a.Close()
	b.Close()
	<-done

	if first != nil && !IsExpectedCloseError(first) {
		return first
	}
	return nil
}
