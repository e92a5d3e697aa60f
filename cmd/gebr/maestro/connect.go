// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package maestro

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gebr-project/gebr/cmd/gebr/cli"
	"github.com/gebr-project/gebr/coordinator"
	"github.com/gebr-project/gebr/lib/protocol"
)

type connectParams struct {
	cli.ClientParams
	cli.Verbosity
}

// ConnectCommand returns "gebr connect".
func ConnectCommand() *cli.Command {
	var params connectParams
	return &cli.Command{
		Name:    "connect",
		Summary: "Connect to a maestro and follow its events",
		Description: `Start or reach the maestro, log in and print every worker, job and
session event until interrupted. Password and host key questions the
maestro relays for its workers are asked on the terminal.

A loopback maestro address starts the maestro as a local child
process; any other address starts it over SSH and tunnels to it.`,
		Usage:  "gebr connect [flags]",
		Params: func() any { return &params },
		Examples: []cli.Example{
			{Description: "Follow a remote maestro and record its traffic", Command: "gebr connect -m cluster.example.org --journal cluster.journal"},
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
			fmt.Fprintln(os.Stdout, "logged in")
			return follow(ctx, client.Events(), os.Stdout)
		},
	}
}

// follow prints events until ctx ends or the session goes down.
func follow(ctx context.Context, events <-chan coordinator.Event, output io.Writer) error {
	for {
		select {
		case event := <-events:
			fmt.Fprintln(output, Describe(event))
			if event.Kind == coordinator.EventSessionState && event.State == protocol.StateDisconnected {
				if event.Failure != nil {
					return event.Failure
				}
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Describe renders an event as one line.
func Describe(event coordinator.Event) string {
	var builder strings.Builder
	builder.WriteString(event.Kind.String())
	add := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&builder, " %s=%s", key, value)
		}
	}
	switch event.Kind {
	case coordinator.EventSessionState:
		add("state", event.State.String())
		if event.Failure != nil {
			add("error", event.Failure.Error())
		}
	case coordinator.EventSessionError:
		if event.Failure != nil {
			add("kind", event.Failure.Kind.String())
		}
		add("message", quote(event.Message))
	case coordinator.EventSessionWarning:
		add("message", quote(event.Message))
	case coordinator.EventWorkerChanged:
		add("address", event.Address)
		add("state", event.State.String())
	case coordinator.EventWorkerRemoved, coordinator.EventGroupsChanged:
		add("address", event.Address)
	case coordinator.EventWorkerError:
		add("address", event.Address)
		if event.WorkerError != nil {
			add("kind", event.WorkerError.Kind.String())
		}
		add("message", quote(event.Message))
	case coordinator.EventAutoconnectChanged:
		add("address", event.Address)
		add("autoconnect", fmt.Sprint(event.Autoconnect))
	case coordinator.EventJobDefined, coordinator.EventJobChanged, coordinator.EventJobClosed:
		add("job", event.JobID)
		add("temporary_id", event.TemporaryID)
		if event.JobStatus != 0 {
			add("status", event.JobStatus.String())
		}
	case coordinator.EventHomeChanged:
		add("path", event.Path)
	case coordinator.EventPathResult:
		add("code", event.Message)
		add("path", event.Path)
	}
	return builder.String()
}

func quote(text string) string {
	if text == "" {
		return ""
	}
	return fmt.Sprintf("%q", text)
}
