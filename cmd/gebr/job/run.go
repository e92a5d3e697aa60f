// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gebr-project/gebr/cmd/gebr/cli"
	"github.com/gebr-project/gebr/coordinator"
	"github.com/gebr-project/gebr/lib/jobs"
)

type runParams struct {
	cli.ClientParams
	cli.Verbosity
	OptionsFile    string `flag:"options,o" desc:"JSONC file with run options"`
	Title          string `flag:"title,t" desc:"job title (default: the flow id)"`
	FlowID         string `flag:"flow-id" desc:"flow id"`
	Speed          int    `flag:"speed" desc:"speed, from 1 (one process) upwards"`
	Niceness       string `flag:"nice" desc:"niceness the job runs with"`
	Group          string `flag:"group,g" desc:"tag to run on, or a worker address with --group-type daemon"`
	GroupType      string `flag:"group-type" desc:"group or daemon"`
	ServerHostname string `flag:"server-hostname" desc:"pin the run to one worker of the group"`
	After          string `flag:"after" desc:"queue behind this job id (see gebr jobs --queues)"`
	Wait           bool   `flag:"wait,w" desc:"wait for the job to finish and print its output"`
}

func (p *runParams) options() Options {
	return Options{
		Title:          p.Title,
		FlowID:         p.FlowID,
		Speed:          p.Speed,
		Niceness:       p.Niceness,
		Group:          p.Group,
		GroupType:      p.GroupType,
		ServerHostname: p.ServerHostname,
		After:          p.After,
	}
}

// RunCommand returns "gebr run".
func RunCommand() *cli.Command {
	var params runParams
	return &cli.Command{
		Name:    "run",
		Summary: "Run a flow on a maestro",
		Description: `Submit the flow document in <flow> ("-" for standard input) to the
maestro. The job is known by a temporary id until the maestro
acknowledges it; the permanent id is printed once it does.`,
		Usage:  "gebr run <flow> [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{Description: "Run a flow on every worker tagged gpu", Command: "gebr run blast.flw --group gpu --speed 3"},
			{Description: "Run with options from a file and wait", Command: "gebr run blast.flw -o blast.jsonc --wait"},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			options := Options{}
			if params.OptionsFile != "" {
				var err error
				if options, err = ReadOptions(params.OptionsFile); err != nil {
					return err
				}
			}
			options = options.Merge(params.options())
			if len(args) == 1 {
				options.Flow = args[0]
			}
			if len(args) > 1 {
				return cli.RequireArgs(args, "flow")
			}
			if options.Flow == "" {
				return errors.New("missing argument <flow>")
			}
			flow, err := readFlow(options.Flow)
			if err != nil {
				return err
			}
			request, err := options.Request(flow)
			if err != nil {
				return err
			}

			client, err := cli.Open(ctx, params.ClientParams, logger)
			if err != nil {
				return err
			}
			defer client.Close()
			return submit(ctx, client, request, params.Wait, os.Stdout)
		},
	}
}

func readFlow(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flow: %w", err)
	}
	return data, nil
}

// submit sends the run, then follows the job's events until the
// maestro acknowledges it, or until it ends when wait is set.
func submit(ctx context.Context, client *cli.Client, request coordinator.RunRequest, wait bool, output io.Writer) error {
	var temporaryID string
	if err := client.Do(ctx, func(c *coordinator.Coordinator) error {
		var err error
		temporaryID, err = c.Run(request)
		return err
	}); err != nil {
		return err
	}
	fmt.Fprintf(output, "submitted %q as %s\n", request.Title, temporaryID)

	id := ""
	for {
		select {
		case event := <-client.Events():
			switch {
			case event.Kind == coordinator.EventJobDefined && event.TemporaryID == temporaryID:
				id = event.JobID
				fmt.Fprintf(output, "maestro accepted %s as job %s\n", temporaryID, id)
				if !wait {
					return nil
				}
				if event.JobStatus.Terminal() {
					return finish(ctx, client, id, output)
				}
			case event.Kind == coordinator.EventJobClosed && event.JobID == id && id != "":
				return fmt.Errorf("job %s was closed before it finished", id)
			case event.Kind == coordinator.EventJobChanged && event.JobID == id && id != "":
				if event.JobStatus.Terminal() {
					return finish(ctx, client, id, output)
				}
			case event.Kind == coordinator.EventSessionState && event.Failure != nil:
				return event.Failure
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// finish prints the output of a terminal job. A job that did not
// finish cleanly exits with status 1.
func finish(ctx context.Context, client *cli.Client, id string, output io.Writer) error {
	var job jobs.Job
	if err := client.Do(ctx, func(c *coordinator.Coordinator) error {
		job, _ = c.Registry().Get(id)
		return nil
	}); err != nil {
		return err
	}
	fmt.Fprint(output, job.FullOutput())
	fmt.Fprintf(output, "job %s %s\n", id, job.Status)
	if job.Status != jobs.StatusFinished {
		return &cli.ExitError{Code: 1}
	}
	return nil
}
