// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package jobs tracks the flow runs a client has submitted or learned
// about from the maestro.
//
// A job submitted by this client exists first under a temporary id
// and is promoted in place when the maestro's JOB message names that
// temporary id. Promotion moves the record rather than copying it, so
// output and status that arrive afterwards land on the same job the
// user has been watching.
package jobs
