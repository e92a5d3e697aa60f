// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gebr-project/gebr/cmd/gebr/cli"
	"github.com/gebr-project/gebr/coordinator"
	"github.com/gebr-project/gebr/lib/eventloop"
	"github.com/gebr-project/gebr/lib/journal"
)

type replayParams struct {
	cli.JSONOutput
	cli.Verbosity
	Snapshot string `flag:"snapshot" desc:"also write the rebuilt state to this snapshot file"`
}

// ReplayCommand returns "gebr replay".
func ReplayCommand() *cli.Command {
	var params replayParams
	return &cli.Command{
		Name:    "replay",
		Summary: "Rebuild worker and job state from a traffic journal",
		Description: `Feed every recorded maestro message through an offline client and
print the workers and jobs it ends up with. Each connection in the
journal is decoded on its own; a corrupt connection is skipped from
the first bad frame to its end.`,
		Usage:  "gebr replay <journal> [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{Description: "Rebuild state and keep it as a snapshot", Command: "gebr replay cluster.journal --snapshot cluster.snapshot"},
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, "journal"); err != nil {
				return err
			}
			snapshot, applied, err := Replay(args[0], logger)
			if err != nil {
				return err
			}
			logger.Info("journal replayed", "path", args[0], "messages", applied)
			if params.Snapshot != "" {
				if err := journal.WriteSnapshot(params.Snapshot, snapshot); err != nil {
					return err
				}
			}
			return show(os.Stdout, snapshot, &params.JSONOutput)
		},
	}
}

// Replay rebuilds client state from the journal at path and returns
// it with the number of messages applied.
func Replay(path string, logger *slog.Logger) (journal.Snapshot, int, error) {
	offline := coordinator.New(coordinator.Config{Loop: eventloop.New(), Logger: logger})
	applied, err := offline.ReplayJournal(path)
	if err != nil {
		return journal.Snapshot{}, applied, err
	}
	return offline.Snapshot(time.Now()), applied, nil
}

type snapshotParams struct {
	cli.ClientParams
	cli.JSONOutput
	cli.Verbosity
	Show   bool          `flag:"show" desc:"print an existing snapshot instead of taking one"`
	Settle time.Duration `flag:"settle" desc:"wait this long without news before taking the snapshot" default:"1s"`
}

// SnapshotCommand returns "gebr snapshot".
func SnapshotCommand() *cli.Command {
	var params snapshotParams
	return &cli.Command{
		Name:    "snapshot",
		Summary: "Save or show the workers and jobs of a maestro",
		Description: `Connect to the maestro, wait for its state to settle and write the
workers and jobs to a compressed snapshot file. With --show, print a
snapshot written earlier without connecting.`,
		Usage:  "gebr snapshot <path> [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{Description: "Save the state of a remote maestro", Command: "gebr snapshot -m cluster.example.org cluster.snapshot"},
			{Description: "Show it later as JSON", Command: "gebr snapshot --show --json cluster.snapshot"},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, "path"); err != nil {
				return err
			}
			if params.Show {
				snapshot, err := journal.ReadSnapshot(args[0])
				if err != nil {
					return err
				}
				return show(os.Stdout, snapshot, &params.JSONOutput)
			}

			client, err := cli.Open(ctx, params.ClientParams, logger)
			if err != nil {
				return err
			}
			defer client.Close()
			client.Settle(ctx, params.Settle)

			var snapshot journal.Snapshot
			client.Do(ctx, func(c *coordinator.Coordinator) error {
				snapshot = c.Snapshot(time.Now())
				return nil
			})
			if err := journal.WriteSnapshot(args[0], snapshot); err != nil {
				return err
			}
			logger.Info("snapshot written", "path", args[0],
				"workers", len(snapshot.Workers), "jobs", len(snapshot.Jobs))
			return nil
		},
	}
}

type snapshotView struct {
	Taken   time.Time       `json:"taken"`
	Maestro string          `json:"maestro,omitempty"`
	Home    string          `json:"home,omitempty"`
	Workers []cli.WorkerRow `json:"workers"`
	Jobs    []cli.JobRow    `json:"jobs"`
}

func show(output io.Writer, snapshot journal.Snapshot, format *cli.JSONOutput) error {
	if done, err := format.EmitJSON(snapshotView{
		Taken:   snapshot.Taken,
		Maestro: snapshot.Maestro,
		Home:    snapshot.Home,
		Workers: cli.WorkerRows(snapshot.Workers),
		Jobs:    cli.JobRows(snapshot.Jobs, false),
	}); done {
		return err
	}

	if snapshot.Maestro != "" {
		fmt.Fprintf(output, "maestro %s, ", snapshot.Maestro)
	}
	fmt.Fprintf(output, "taken %s\n\n", snapshot.Taken.Format(time.RFC3339))
	if err := cli.WorkerTable(snapshot.Workers).Render(output); err != nil {
		return err
	}
	if len(snapshot.Jobs) == 0 {
		return nil
	}
	fmt.Fprintln(output)
	return cli.JobTable(snapshot.Jobs).Render(output)
}
