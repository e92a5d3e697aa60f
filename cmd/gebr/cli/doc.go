// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the gebr CLI and
// the pieces every maestro command shares.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a flag set built from a params struct
// by [FlagsFromParams], and a Run function. [Command.Execute] parses
// flags, routes subcommands and prints help. Unknown subcommands and
// flags get a suggestion when one is within edit distance 3.
//
// [Open] connects to the configured maestro and returns a [Client]:
// the event loop, the transport session and the coordinator wired
// together, with the terminal as the prompter and the configured
// mount commands as the mounter.
package cli
