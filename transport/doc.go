// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport connects a client to one maestro.
//
// A [Session] walks the connection state machine:
//
//	Disconnected -> Launching -> OpeningTunnel -> Connecting -> Connected -> LoggedIn
//
// Launching starts the maestro and reads back the port it listens on.
// Loopback addresses run it as a local child process through
// [LocalLauncher]; anything else goes through [SSHLauncher], which
// authenticates with golang.org/x/crypto/ssh and runs the bootstrap
// command on the remote host. Remote maestros are then reached through
// a local tunnel: the session listens on the lowest free port at or
// above the tunnel base and forwards each connection over the SSH
// client, polling on an injected clock until the maestro answers. The
// connection that answers a poll carries the login.
//
// Once connected the session sends the INI login and waits for the
// maestro's RET INI. Requests issued before login are queued and
// flushed in order when it arrives. A non-zero display port in the
// answer starts display forwarding from the maestro host back to the
// local X server.
//
// A Session belongs to one [eventloop.Loop]: every method must be
// called from a function running on it, and every helper goroutine
// (launch, tunnel probe, socket reader and writer) posts its results
// back rather than touching session state. Each connection attempt has
// a generation number; results tagged with an older generation are
// dropped, so nothing from a torn-down attempt can leak into the next.
//
// Failures are sticky. The session keeps the last [Failure] (kind and
// message) until the next Connect, classified as ConnectError,
// ServerError, SshError or ProtocolError.
package transport
