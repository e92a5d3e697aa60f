// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates the logger handed to a command's Run. When
// stderr is a terminal it uses slog.TextHandler for people; otherwise
// slog.JSONHandler for scripts and log collectors.
func NewCommandLogger(level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// Verbosity is embedded in params structs to add --verbose.
type Verbosity struct {
	Verbose bool `json:"-" flag:"verbose,v" desc:"log debug detail, including every state change"`
}

// LogLevel is the level the command logger is built with.
func (v *Verbosity) LogLevel() slog.Level {
	if v.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
