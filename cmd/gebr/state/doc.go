// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package state implements the commands that work on recorded client
// state: "gebr replay" rebuilds worker and job state from a traffic
// journal without a maestro, and "gebr snapshot" saves or shows a
// point-in-time copy of that state.
package state
