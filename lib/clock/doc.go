// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for code that waits: the tunnel poll,
// the xauth retry and the password-prompt plumbing. Production code
// uses [Real]; tests use [Fake] and step time with
// [FakeClock.Advance].
package clock
