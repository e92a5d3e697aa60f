// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package job implements "gebr jobs" and "gebr run".
//
// Run options may come from a JSONC file: the JSON of [Options]
// extended with // and /* */ comments and trailing commas. Flags given
// on the command line override the file.
package job
