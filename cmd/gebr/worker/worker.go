// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gebr-project/gebr/cmd/gebr/cli"
	"github.com/gebr-project/gebr/coordinator"
	"github.com/gebr-project/gebr/lib/directory"
)

type listParams struct {
	cli.ClientParams
	cli.JSONOutput
	cli.Verbosity
	Groups []string      `flag:"group,g" desc:"only workers carrying one of these tags"`
	Settle time.Duration `flag:"settle" desc:"wait this long without news before listing" default:"1s"`
}

// ListCommand returns "gebr workers".
func ListCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "workers",
		Summary: "List the workers of a maestro",
		Description: `Connect to the maestro, wait for its worker list to settle and
print every worker with its state, tags, hardware and last error.`,
		Usage:  "gebr workers [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{Description: "List workers tagged gpu on a remote maestro", Command: "gebr workers -m cluster.example.org --group gpu"},
		},
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

			var workers []directory.Worker
			client.Do(ctx, func(c *coordinator.Coordinator) error {
				workers = c.Directory().List(params.Groups, false)
				return nil
			})
			if done, err := params.EmitJSON(cli.WorkerRows(workers)); done {
				return err
			}
			return cli.WorkerTable(workers).Render(os.Stdout)
		},
	}
}

type actionParams struct {
	cli.ClientParams
	cli.Verbosity
}

type addParams struct {
	actionParams
	Password bool `flag:"password,p" desc:"prompt for the worker's SSH password"`
}

// Command returns the "gebr worker" group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "worker",
		Summary: "Manage the workers of a maestro",
		Subcommands: []*cli.Command{
			addCommand(),
			actionCommand("remove", "Remove a worker from the maestro",
				(*coordinator.Coordinator).RemoveWorker),
			actionCommand("disconnect", "Disconnect a worker, keeping it in the list",
				(*coordinator.Coordinator).DisconnectWorker),
			actionCommand("stop", "Stop a worker's daemon",
				(*coordinator.Coordinator).StopWorker),
			tagCommand("tag", "Add a tag to a worker", (*coordinator.Coordinator).TagWorker),
			tagCommand("untag", "Remove a tag from a worker", (*coordinator.Coordinator).UntagWorker),
			autoconnectCommand(),
		},
	}
}

func addCommand() *cli.Command {
	var params addParams
	return &cli.Command{
		Name:    "add",
		Summary: "Add a worker and connect it",
		Description: `Ask the maestro to connect the daemon at <address>, adding it to the
worker list if it is new. The maestro may ask for the worker's SSH
password or to confirm its host key; those questions are asked here.`,
		Usage:  "gebr worker add <address> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, "address"); err != nil {
				return err
			}
			address := args[0]
			password := ""
			if params.Password {
				var err error
				if password, err = readPassword(address); err != nil {
					return err
				}
			}
			return send(ctx, params.actionParams, logger, func(c *coordinator.Coordinator) error {
				return c.ConnectWorker(address, password)
			})
		},
	}
}

func actionCommand(name, summary string, action func(*coordinator.Coordinator, string) error) *cli.Command {
	var params actionParams
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("gebr worker %s <address> [flags]", name),
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, "address"); err != nil {
				return err
			}
			return send(ctx, params, logger, func(c *coordinator.Coordinator) error {
				return action(c, args[0])
			})
		},
	}
}

func tagCommand(name, summary string, action func(*coordinator.Coordinator, string, string) error) *cli.Command {
	var params actionParams
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("gebr worker %s <address> <tag> [flags]", name),
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, "address", "tag"); err != nil {
				return err
			}
			return send(ctx, params, logger, func(c *coordinator.Coordinator) error {
				return action(c, args[0], args[1])
			})
		},
	}
}

func autoconnectCommand() *cli.Command {
	var params actionParams
	return &cli.Command{
		Name:    "autoconnect",
		Summary: "Turn a worker's autoconnect on or off",
		Usage:   "gebr worker autoconnect <address> on|off [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, "address", "on|off"); err != nil {
				return err
			}
			enabled, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			return send(ctx, params, logger, func(c *coordinator.Coordinator) error {
				return c.SetAutoconnect(args[0], enabled)
			})
		},
	}
}

func parseOnOff(value string) (bool, error) {
	switch value {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	if enabled, err := strconv.ParseBool(value); err == nil {
		return enabled, nil
	}
	return false, fmt.Errorf("autoconnect must be on or off, got %q", value)
}

// send connects, runs one action and disconnects once the request has
// been written. Prompts the maestro relays in the meantime are asked
// on the terminal.
func send(ctx context.Context, params actionParams, logger *slog.Logger, action func(*coordinator.Coordinator) error) error {
	client, err := cli.Open(ctx, params.ClientParams, logger)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Do(ctx, action); err != nil {
		return err
	}
	client.Settle(ctx, time.Second)
	return nil
}
