// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for the gebr binary: error
// reporting before a logger exists, and process-group control for the
// maestro children the transport starts on this host.
package process
