// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for GeBR packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests never hang on a missing event. They are the only
// place the test suite waits on the wall clock.
//
// [StartLoop] runs an event loop for the duration of a test and
// [CallLoop] runs a function on it and waits for the result.
//
// [SocketDir] returns a short temporary directory for Unix sockets,
// whose paths are limited to 108 bytes.
//
// Helpers call t.Fatalf on failure rather than returning errors.
package testutil
