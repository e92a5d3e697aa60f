// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete gebr command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gebr-project/gebr/cmd/gebr/cli"
	jobcmd "github.com/gebr-project/gebr/cmd/gebr/job"
	maestrocmd "github.com/gebr-project/gebr/cmd/gebr/maestro"
	statecmd "github.com/gebr-project/gebr/cmd/gebr/state"
	workercmd "github.com/gebr-project/gebr/cmd/gebr/worker"
	"github.com/gebr-project/gebr/lib/version"
)

// Root builds and returns the complete gebr command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "gebr",
		Description: `gebr: client for a GeBR maestro.

Start or reach a maestro, manage the workers it connects to, submit
flows as jobs and follow their output. A maestro on another host is
started over SSH and reached through a tunnel.`,
		Subcommands: []*cli.Command{
			maestrocmd.ConnectCommand(),
			workercmd.ListCommand(),
			workercmd.Command(),
			jobcmd.ListCommand(),
			jobcmd.RunCommand(),
			statecmd.ReplayCommand(),
			statecmd.SnapshotCommand(),
			maestrocmd.HostCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					if err := cli.RequireArgs(args); err != nil {
						return err
					}
					fmt.Printf("gebr %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
