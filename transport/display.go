// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gebr-project/gebr/lib/clock"
)

// x11SocketDir holds the local X server's unix sockets.
var x11SocketDir = "/tmp/.X11-unix"

// parseDisplay splits an X display string ("host:N.S", ":N") into host
// and display number.
func parseDisplay(display string) (host string, number int, ok bool) {
	colon := strings.LastIndexByte(display, ':')
	if colon < 0 {
		return "", 0, false
	}
	host = display[:colon]
	digits, _, _ := strings.Cut(display[colon+1:], ".")
	number, err := strconv.Atoi(digits)
	if err != nil || number < 0 {
		return "", 0, false
	}
	return host, number, true
}

// displayDialer connects to the local X server named by display: its
// unix socket when it has one, otherwise TCP port 6000+N.
func displayDialer(display string) (func() (net.Conn, error), bool) {
	host, number, ok := parseDisplay(display)
	if !ok {
		return nil, false
	}
	socket := filepath.Join(x11SocketDir, "X"+strconv.Itoa(number))
	if host == "" || host == "unix" {
		if _, err := os.Stat(socket); err == nil {
			return func() (net.Conn, error) { return net.Dial("unix", socket) }, true
		}
		host = "127.0.0.1"
	}
	address := net.JoinHostPort(host, strconv.Itoa(6000+number))
	return func() (net.Conn, error) { return net.Dial("tcp", address) }, true
}

// CookieFunc returns the X authorization cookie sent with a remote
// login, or "" when there is none.
type CookieFunc func(ctx context.Context, display string) string

const (
	xauthAttempts = 5
	xauthRetry    = 100 * time.Millisecond
)

// XAuthCookie reads the cookie for the local display with
// `xauth list :N`, retrying while xauth prints nothing.
func XAuthCookie(clk clock.Clock) CookieFunc {
	return func(ctx context.Context, display string) string {
		return readCookie(ctx, clk, display, func(ctx context.Context, name string) ([]byte, error) {
			return exec.CommandContext(ctx, "xauth", "list", name).Output()
		})
	}
}

func readCookie(ctx context.Context, clk clock.Clock, display string, list func(context.Context, string) ([]byte, error)) string {
	_, number, ok := parseDisplay(display)
	if !ok {
		return ""
	}
	name := ":" + strconv.Itoa(number)
	for attempt := range xauthAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ""
			case <-clk.After(xauthRetry):
			}
		}
		output, err := list(ctx, name)
		if err != nil {
			continue
		}
		line, _, _ := strings.Cut(string(output), "\n")
		if fields := strings.Fields(line); len(fields) >= 3 {
			return fields[2]
		}
	}
	return ""
}
