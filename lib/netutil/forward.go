// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
)

// ListenFirstFree listens on host at the lowest free port in
// [base, base+attempts) and returns the bound port. A port taken by
// someone else, even between our check and our bind, just moves the
// search to the next one. Base 0 lets the kernel choose.
func ListenFirstFree(host string, base, attempts int) (net.Listener, int, error) {
	var lastErr error
	for port := base; port < base+attempts && port <= 65535; port++ {
		listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return listener, listener.Addr().(*net.TCPAddr).Port, nil
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("no free port on %s in %d..%d: %w", host, base, base+attempts-1, lastErr)
}

// Forward accepts connections on listener and bridges each one to a
// connection obtained from dial. It returns when the listener is
// closed; a closed listener is not an error.
func Forward(listener net.Listener, dial func() (net.Conn, error), logger *slog.Logger) error {
	for {
		inbound, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go func() {
			outbound, err := dial()
			if err != nil {
				logger.Warn("forward dial failed", "local", inbound.RemoteAddr(), "error", err)
				inbound.Close()
				return
			}
			if err := BridgeConnections(inbound, outbound); err != nil {
				logger.Debug("forward bridge ended", "error", err)
			}
		}()
	}
}
