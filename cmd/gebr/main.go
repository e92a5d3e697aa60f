// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gebr-project/gebr/cmd/gebr/commands"
	"github.com/gebr-project/gebr/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that already reported their outcome return an
		// ExitError carrying the code.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			process.Exit(coder.ExitCode(), nil)
		}
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:])
}
