// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package coordinator is the client's model of one maestro.
//
// A [Coordinator] receives every frame its transport session decodes
// and dispatches it by [protocol.Kind]. Each handler mutates the
// worker [directory.Directory] or the [jobs.Registry] and reports what
// changed to the [Observer] as exactly one [Event]. Events name records
// by key (worker address, job id); observers read the record back
// through the coordinator's accessors.
//
// Questions the maestro relays on a daemon's behalf (passwords, host
// keys, confirmations) go to a [prompt.Prompter] with a correlation id.
// The answer may arrive from any goroutine; it is posted back onto the
// loop and turned into the matching request. Prompts still open when
// the session drops are forgotten, and their late answers ignored.
//
// Like the session, a Coordinator belongs to one event loop and must
// only be touched from functions running on it.
package coordinator
