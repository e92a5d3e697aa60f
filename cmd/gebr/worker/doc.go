// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package worker implements "gebr workers" and the "gebr worker"
// command group: listing the daemons a maestro manages and asking the
// maestro to connect, disconnect, remove, stop, tag or untag them and
// to toggle their autoconnect flag.
package worker
