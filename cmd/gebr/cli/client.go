// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/gebr-project/gebr/coordinator"
	"github.com/gebr-project/gebr/lib/clock"
	"github.com/gebr-project/gebr/lib/config"
	"github.com/gebr-project/gebr/lib/eventloop"
	"github.com/gebr-project/gebr/lib/hostinfo"
	"github.com/gebr-project/gebr/lib/journal"
	"github.com/gebr-project/gebr/lib/protocol"
	"github.com/gebr-project/gebr/transport"
)

// eventBuffer is how many coordinator events a Client holds for a
// slow reader before dropping them.
const eventBuffer = 1024

// ClientParams selects and reaches a maestro. Embed it in the params
// of any command that talks to one.
type ClientParams struct {
	ConfigPath string
	Maestro    string
	Journal    string
	Timeout    time.Duration
}

// AddFlags implements FlagBinder.
func (p *ClientParams) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&p.ConfigPath, "config", "", "configuration file (default $GEBR_CONFIG)")
	flagSet.StringVarP(&p.Maestro, "maestro", "m", "", "maestro host, overriding maestro.address")
	flagSet.StringVar(&p.Journal, "journal", "", "record received frames to this file, overriding journal.path")
	flagSet.DurationVar(&p.Timeout, "timeout", 5*time.Minute, "how long to wait for the login, password prompts included")
}

// LoadConfig reads the configuration named by --config, or by
// GEBR_CONFIG, and applies the overriding flags.
func (p *ClientParams) LoadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if p.ConfigPath != "" {
		cfg, err = config.LoadFile(p.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if p.Maestro != "" {
		cfg.Maestro.Address = p.Maestro
	}
	if p.Journal != "" {
		cfg.Journal.Path = p.Journal
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Client is a logged-in maestro connection. Its coordinator and
// session belong to the client's loop: reach them through Do.
type Client struct {
	loop        *eventloop.Loop
	session     *transport.Session
	coordinator *coordinator.Coordinator
	prompter    *TerminalPrompter
	recorder    *journal.Writer
	events      chan coordinator.Event
	cancel      context.CancelFunc
	logger      *slog.Logger
}

// Open connects to the configured maestro and waits for the login.
func Open(ctx context.Context, params ClientParams, logger *slog.Logger) (*Client, error) {
	cfg, err := params.LoadConfig()
	if err != nil {
		return nil, err
	}
	return OpenConfig(ctx, cfg, params.Timeout, logger)
}

// OpenConfig is Open with an already loaded configuration.
func OpenConfig(ctx context.Context, cfg *config.Config, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	client := &Client{
		loop:     eventloop.New(),
		prompter: NewTerminalPrompter(),
		events:   make(chan coordinator.Event, eventBuffer),
		logger:   logger,
	}

	var recorder transport.Recorder
	if cfg.Journal.Path != "" {
		writer, err := journal.Create(cfg.Journal.Path)
		if err != nil {
			client.prompter.Close()
			return nil, err
		}
		client.recorder, recorder = writer, writer
	}

	host := hostinfo.Probe()
	client.coordinator = coordinator.New(coordinator.Config{
		Loop:          client.loop,
		Observer:      coordinator.ObserverFunc(client.observe),
		Prompter:      client.prompter,
		Mounter:       mounterFor(cfg.Mount, logger),
		MountBasePort: cfg.Mount.BasePort,
		Hostname:      host.Hostname,
		Logger:        logger.With("component", "coordinator"),
	})
	client.session = transport.New(transport.Config{
		Loop:            client.loop,
		Address:         cfg.Maestro.Address,
		Launcher:        transport.NewHostLauncher(cfg, nil, logger.With("component", "launcher")),
		ProtocolVersion: cfg.Maestro.ProtocolVersion,
		Hostname:        host.Hostname,
		Display:         os.Getenv("DISPLAY"),
		Cookie:          transport.XAuthCookie(clock.Real()),
		TunnelBasePort:  cfg.Tunnel.BasePort,
		PollInterval:    cfg.Tunnel.PollInterval,
		Prompter:        client.prompter,
		Handler:         client.coordinator,
		Recorder:        recorder,
		Logger:          logger.With("component", "session"),
	})
	client.coordinator.SetSession(client.session)

	loopContext, cancel := context.WithCancel(context.Background())
	client.cancel = cancel
	go client.loop.Run(loopContext)

	if err := client.login(ctx, timeout); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func mounterFor(mount config.MountConfig, logger *slog.Logger) coordinator.Mounter {
	if mount.Command == "" {
		return nil
	}
	return &CommandMounter{Config: mount, Logger: logger.With("component", "mount")}
}

// observe runs on the loop and must not block it.
func (c *Client) observe(event coordinator.Event) {
	select {
	case c.events <- event:
	default:
		c.logger.Warn("dropping coordinator event, reader is behind", "kind", event.Kind)
	}
}

// login starts the session and waits for LoggedIn or a failure.
func (c *Client) login(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.Do(ctx, (*coordinator.Coordinator).Connect); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	for {
		select {
		case event := <-c.events:
			if event.Kind != coordinator.EventSessionState {
				continue
			}
			c.logger.Debug("maestro session", "state", event.State)
			switch event.State {
			case protocol.StateLoggedIn:
				return nil
			case protocol.StateDisconnected:
				if event.Failure != nil {
					return event.Failure
				}
				return errors.New("the maestro session closed before the login finished")
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for the maestro login: %w", ctx.Err())
		}
	}
}

// Do runs fn on the client's loop and returns its error.
func (c *Client) Do(ctx context.Context, fn func(*coordinator.Coordinator) error) error {
	var result error
	if err := c.loop.Call(ctx, func() { result = fn(c.coordinator) }); err != nil {
		return err
	}
	return result
}

// Events delivers every coordinator event after the login.
func (c *Client) Events() <-chan coordinator.Event { return c.events }

// Settle drains events until none arrives for quiet, or ctx ends.
// Commands use it to let the maestro's initial burst of worker and job
// state land before reading the directory.
func (c *Client) Settle(ctx context.Context, quiet time.Duration) {
	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		select {
		case <-c.events:
			timer.Reset(quiet)
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close disconnects the session, stops the loop and finishes the
// journal.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.loop.Call(ctx, func() { c.session.Disconnect() })
	c.cancel()
	<-c.loop.Done()

	var errs []error
	if c.recorder != nil {
		errs = append(errs, c.recorder.Close())
	}
	errs = append(errs, c.prompter.Close())
	return errors.Join(errs...)
}
