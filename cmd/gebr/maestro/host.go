// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package maestro

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gebr-project/gebr/cmd/gebr/cli"
	"github.com/gebr-project/gebr/lib/directory"
	"github.com/gebr-project/gebr/lib/hostinfo"
	"github.com/gebr-project/gebr/lib/protocol"
)

type hostParams struct {
	cli.JSONOutput
}

// HostCommand returns "gebr host".
func HostCommand() *cli.Command {
	var params hostParams
	return &cli.Command{
		Name:    "host",
		Summary: "Show this host as a worker would report it",
		Description: `Print the hostname, CPU and memory of this host: the same metrics a
worker reports to its maestro, and the hostname sent at login.`,
		Usage:  "gebr host [--json]",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if err := cli.RequireArgs(args); err != nil {
				return err
			}
			worker := workerFor(hostinfo.Probe())
			if done, err := params.EmitJSON(cli.WorkerRows([]directory.Worker{worker})[0]); done {
				return err
			}
			fmt.Fprintf(os.Stdout, "hostname  %s\n", worker.Hostname)
			fmt.Fprintf(os.Stdout, "cpu       %s\n", worker.CPUModel)
			fmt.Fprintf(os.Stdout, "cores     %d at %.0f MHz\n", worker.CPUCores, worker.CPUClock)
			fmt.Fprintf(os.Stdout, "memory    %s\n", worker.Memory)
			return nil
		},
	}
}

// workerFor renders the host as the directory would hold it.
func workerFor(info hostinfo.Info) directory.Worker {
	workers := directory.New()
	status := info.Status("127.0.0.1", protocol.StateLoggedIn)
	workers.Upsert(status)
	worker, _ := workers.Get(status.Address)
	return worker
}
