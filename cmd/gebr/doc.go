// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Gebr is the command-line client for a GeBR maestro. It connects to
// a maestro (connect), lists and manages workers (workers, worker),
// submits and follows jobs (run, jobs), and works with recorded client
// state offline (replay, snapshot).
package main
