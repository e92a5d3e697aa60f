// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/gebr-project/gebr/lib/config"
)

// mountTimeout bounds each mount or unmount command.
const mountTimeout = time.Minute

// CommandMounter mounts the maestro's filesystem by running the
// configured shell commands. It implements coordinator.Mounter.
type CommandMounter struct {
	Config config.MountConfig
	Logger *slog.Logger

	address string
	port    int
}

func (m *CommandMounter) Mount(address string, basePort int) error {
	m.address, m.port = address, basePort
	return m.run(m.Config.Command)
}

func (m *CommandMounter) Unmount() error {
	return m.run(m.Config.UnmountCommand)
}

func (m *CommandMounter) run(template string) error {
	if template == "" {
		return nil
	}
	line := m.Config.Render(template, m.address, m.port)
	ctx, cancel := context.WithTimeout(context.Background(), mountTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, "/bin/sh", "-c", line).CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %q: %w (output: %s)", line, err, output)
	}
	m.Logger.Debug("mount command finished", "command", line)
	return nil
}
