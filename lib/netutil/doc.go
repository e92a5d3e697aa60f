// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the socket plumbing shared by the maestro
// tunnel and display forwarding: a first-free-port listener, an
// accept-and-bridge forwarder, and classification of the errors a
// bridge sees during normal teardown.
package netutil
