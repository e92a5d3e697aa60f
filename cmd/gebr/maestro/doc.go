// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package maestro implements "gebr connect", which holds a session
// open and prints what the maestro reports, and "gebr host", which
// prints what this host would report about itself.
package maestro
