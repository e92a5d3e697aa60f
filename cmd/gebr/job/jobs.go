// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gebr-project/gebr/cmd/gebr/cli"
	"github.com/gebr-project/gebr/coordinator"
	"github.com/gebr-project/gebr/lib/jobs"
)

type listParams struct {
	cli.ClientParams
	cli.JSONOutput
	cli.Verbosity
	Active bool          `flag:"active,a" desc:"only queued and running jobs"`
	Output bool          `flag:"output" desc:"include job output in JSON"`
	Queues bool          `flag:"queues" desc:"list the queues a new run can wait behind"`
	Settle time.Duration `flag:"settle" desc:"wait this long without news before listing" default:"1s"`
}

// ListCommand returns "gebr jobs".
func ListCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "jobs",
		Summary: "List the jobs of a maestro",
		Usage:   "gebr jobs [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args); err != nil {
				return err
			}
			client, err := cli.Open(ctx, params.ClientParams, logger)
			if err != nil {
				return err
			}
			defer client.Close()
			client.Settle(ctx, params.Settle)

			if params.Queues {
				var choices []jobs.QueueChoice
				client.Do(ctx, func(c *coordinator.Coordinator) error {
					choices = c.Registry().QueueChoices()
					return nil
				})
				if done, err := params.EmitJSON(cli.QueueRows(choices)); done {
					return err
				}
				return cli.QueueTable(choices).Render(os.Stdout)
			}

			var list []jobs.Job
			client.Do(ctx, func(c *coordinator.Coordinator) error {
				if params.Active {
					list = c.Registry().ActiveJobs()
				} else {
					list = c.Registry().Jobs()
				}
				return nil
			})
			if done, err := params.EmitJSON(cli.JobRows(list, params.Output)); done {
				return err
			}
			return cli.JobTable(list).Render(os.Stdout)
		},
	}
}
