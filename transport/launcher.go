// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/gebr-project/gebr/lib/config"
	"github.com/gebr-project/gebr/lib/directory"
	"github.com/gebr-project/gebr/lib/process"
	"github.com/gebr-project/gebr/lib/prompt"
)

// LaunchRequest is one attempt to start a maestro.
type LaunchRequest struct {
	Address string

	// Password is the password that worked last time, tried before
	// asking. Empty when none is cached.
	Password string

	// Ask presents a prompt and blocks for the answer. It returns an
	// error only when ctx ends first.
	Ask func(ctx context.Context, request prompt.Request) (prompt.Answer, error)
}

// Launcher starts a maestro and reports where it listens.
type Launcher interface {
	Launch(ctx context.Context, request LaunchRequest) (Maestro, error)
}

// Maestro is a started maestro process.
type Maestro interface {
	// Port is the TCP port the maestro listens on, on its own host.
	Port() int

	// Password is the password that authenticated the launch, or ""
	// when none was needed.
	Password() string

	// Tunnel reaches the maestro's host. It is nil for a local
	// maestro, whose port is dialled directly.
	Tunnel() Tunnel

	// Stop terminates the maestro process (or the remote bootstrap
	// command) and releases the connection used to start it.
	Stop() error
}

// Tunnel opens streams on the maestro's host.
type Tunnel interface {
	// DialRemote connects to port on the remote loopback interface.
	DialRemote(ctx context.Context, port int) (net.Conn, error)

	// ListenRemote listens on port on the remote loopback interface.
	ListenRemote(port int) (net.Listener, error)
}

// HostLauncher starts loopback maestros with Local and everything else
// with Remote.
type HostLauncher struct {
	Local  Launcher
	Remote Launcher
}

func (h *HostLauncher) Launch(ctx context.Context, request LaunchRequest) (Maestro, error) {
	if directory.IsLoopback(request.Address) {
		return h.Local.Launch(ctx, request)
	}
	return h.Remote.Launch(ctx, request)
}

// NewHostLauncher builds the launchers described by cfg.
func NewHostLauncher(cfg *config.Config, dialer Dialer, logger *slog.Logger) *HostLauncher {
	return &HostLauncher{
		Local: &LocalLauncher{
			Command: cfg.Maestro.Command(cfg.Maestro.LocalCommand),
			Logger:  logger,
		},
		Remote: &SSHLauncher{
			User:             cfg.SSH.User,
			Port:             cfg.SSH.Port,
			Command:          cfg.Maestro.Command(cfg.Maestro.RemoteCommand),
			KnownHosts:       cfg.SSH.KnownHosts,
			IdentityFiles:    cfg.SSH.IdentityFiles,
			AgentSocket:      cfg.SSH.AgentSocket,
			PasswordAttempts: cfg.SSH.PasswordAttempts,
			HandshakeTimeout: 5 * time.Minute,
			Dialer:           dialer,
			Logger:           logger,
		},
	}
}

// LocalLauncher runs the maestro as a child process through /bin/sh.
// The child is placed in its own process group so Stop also reaches
// anything the shell started.
type LocalLauncher struct {
	// Command is the shell command line, already rendered for the
	// configured binary.
	Command string
	Logger  *slog.Logger
}

func (l *LocalLauncher) Launch(ctx context.Context, request LaunchRequest) (Maestro, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cmd := exec.Command("/bin/sh", "-c", l.Command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, failure(ErrorServer, "", fmt.Errorf("creating maestro stdout pipe: %w", err))
	}
	if err := process.StartGroup(cmd); err != nil {
		return nil, failure(ErrorServer, "", fmt.Errorf("starting %q: %w", l.Command, err))
	}

	exited := make(chan struct{})
	port, rest, err := readPort(ctx, stdout)
	go func() {
		defer close(exited)
		if rest != nil {
			io.Copy(io.Discard, rest)
		}
		if err := cmd.Wait(); err != nil {
			logger.Debug("local maestro exited", "error", err)
		}
	}()
	if err != nil {
		process.TerminateGroup(cmd)
		return nil, err
	}

	logger.Info("local maestro started", "pid", cmd.Process.Pid, "port", port)
	return &localMaestro{cmd: cmd, port: port, exited: exited}, nil
}

type localMaestro struct {
	cmd    *exec.Cmd
	port   int
	exited chan struct{}
}

func (m *localMaestro) Port() int        { return m.port }
func (m *localMaestro) Password() string { return "" }
func (m *localMaestro) Tunnel() Tunnel   { return nil }

func (m *localMaestro) Stop() error {
	select {
	case <-m.exited:
		return nil
	default:
	}
	return process.TerminateGroup(m.cmd)
}

// readPort reads the first line of output and parses it as the
// maestro's port. The returned reader holds whatever followed the
// line; callers must keep draining it so the writer never blocks.
func readPort(ctx context.Context, output io.Reader) (int, *bufio.Reader, error) {
	reader := bufio.NewReader(output)
	type result struct {
		line string
		err  error
	}
	lines := make(chan result, 1)
	go func() {
		line, err := reader.ReadString('\n')
		lines <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case read := <-lines:
		if read.err != nil && read.line == "" {
			return 0, reader, failure(ErrorServer, "maestro exited without reporting its port", read.err)
		}
		port, err := parsePort(read.line)
		if err != nil {
			return 0, reader, failure(ErrorServer, "", err)
		}
		return port, reader, nil
	}
}

func parsePort(line string) (int, error) {
	line = strings.TrimSpace(line)
	port, err := strconv.Atoi(line)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("maestro reported %q instead of a port", line)
	}
	return port, nil
}
