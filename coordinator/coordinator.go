// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gebr-project/gebr/lib/directory"
	"github.com/gebr-project/gebr/lib/eventloop"
	"github.com/gebr-project/gebr/lib/jobs"
	"github.com/gebr-project/gebr/lib/prompt"
	"github.com/gebr-project/gebr/lib/protocol"
	"github.com/gebr-project/gebr/transport"
)

// ErrOffline is returned by actions on a coordinator without a session,
// such as one rebuilding state from a journal.
var ErrOffline = errors.New("coordinator: no maestro session")

// Session is the transport a Coordinator sends through.
// *transport.Session implements it.
type Session interface {
	Address() string
	State() protocol.State
	Remote() bool
	Login() transport.LoginInfo
	Connect() error
	Disconnect()
	Send(url string, body []byte, callback transport.Callback) error
	SendMessage(kind protocol.Kind, fields ...string) error
}

// Mounter attaches the maestro's filesystem while at least one worker
// is logged in.
type Mounter interface {
	Mount(address string, basePort int) error
	Unmount() error
}

// Config configures a Coordinator.
type Config struct {
	// Loop owns the coordinator. Required.
	Loop *eventloop.Loop

	// Session may be nil for an offline coordinator; actions then
	// return ErrOffline.
	Session Session

	Observer Observer
	Prompter prompt.Prompter
	Mounter  Mounter

	// MountBasePort is passed to the Mounter.
	MountBasePort int

	// Hostname is this client's host, sent with run requests.
	Hostname string

	Logger *slog.Logger
}

// Coordinator holds the directory and job registry of one maestro.
type Coordinator struct {
	loop     *eventloop.Loop
	session  Session
	observer Observer
	prompter prompt.Prompter
	mounter  Mounter
	config   Config
	logger   *slog.Logger

	workers  *directory.Directory
	registry *jobs.Registry

	lastError *transport.Failure
	home      string
	mounted   bool
	prompts   map[uint64]prompt.Request
}

// New returns a coordinator with an empty directory and registry.
// Wire it to a session by passing it as the session's Handler.
func New(config Config) *Coordinator {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	observer := config.Observer
	if observer == nil {
		observer = ObserverFunc(func(Event) {})
	}
	prompter := config.Prompter
	if prompter == nil {
		prompter = prompt.Decline
	}
	return &Coordinator{
		loop:     config.Loop,
		session:  config.Session,
		observer: observer,
		prompter: prompter,
		mounter:  config.Mounter,
		config:   config,
		logger:   logger,
		workers:  directory.New(),
		registry: jobs.NewRegistry(),
		prompts:  make(map[uint64]prompt.Request),
	}
}

// SetSession attaches the transport. The session is usually created
// after the coordinator, since the coordinator is its Handler.
func (c *Coordinator) SetSession(session Session) { c.session = session }

// Directory returns the worker directory. Callers must not keep it
// beyond the current loop function.
func (c *Coordinator) Directory() *directory.Directory { return c.workers }

// Registry returns the job registry, with the same restriction.
func (c *Coordinator) Registry() *jobs.Registry { return c.registry }

// Home is the maestro's home directory, once announced.
func (c *Coordinator) Home() string { return c.home }

// Mounted reports whether the display filesystem is mounted.
func (c *Coordinator) Mounted() bool { return c.mounted }

// LastError is the sticky session error: the failure that brought the
// session down, or the last maestro-level ERR. Nil when there is none.
func (c *Coordinator) LastError() *transport.Failure { return c.lastError }

// PendingPrompts returns how many relayed prompts are unanswered.
func (c *Coordinator) PendingPrompts() int { return len(c.prompts) }

// Connect starts the session and clears the sticky error.
func (c *Coordinator) Connect() error {
	if c.session == nil {
		return ErrOffline
	}
	c.lastError = nil
	return c.session.Connect()
}

// Disconnect stops the session. Workers and jobs are kept.
func (c *Coordinator) Disconnect() {
	if c.session != nil {
		c.session.Disconnect()
	}
}

// StateChanged implements transport.Handler.
func (c *Coordinator) StateChanged(state protocol.State, failure *transport.Failure) {
	if state == protocol.StateDisconnected {
		if failure != nil {
			c.lastError = failure
		}
		clear(c.prompts)
		c.unmount()
	}
	c.notify(Event{Kind: EventSessionState, State: state, Failure: failure})
}

// Frame implements transport.Handler.
func (c *Coordinator) Frame(frame protocol.Frame) {
	if frame.IsHTTP() {
		return
	}
	c.Dispatch(frame.Message)
}

// Dispatch applies one message. It is exported for replaying recorded
// traffic into an offline coordinator.
func (c *Coordinator) Dispatch(message protocol.Message) {
	handler, ok := handlers[message.Kind]
	if !ok {
		c.logger.Debug("ignoring message", "kind", message.Kind)
		return
	}
	handler(c, message)
}

func (c *Coordinator) notify(event Event) {
	c.observer.Notify(event)
}

func (c *Coordinator) send(url string, body []byte) error {
	if c.session == nil {
		return ErrOffline
	}
	if err := c.session.Send(url, body, nil); err != nil {
		return fmt.Errorf("sending %s: %w", url, err)
	}
	return nil
}

// mount attaches the filesystem if a worker just logged in and nothing
// is mounted yet.
func (c *Coordinator) mount() {
	if c.mounted || c.mounter == nil || c.session == nil {
		return
	}
	if err := c.mounter.Mount(c.session.Address(), c.config.MountBasePort); err != nil {
		c.logger.Warn("mounting maestro filesystem failed", "error", err)
		return
	}
	c.mounted = true
}

func (c *Coordinator) unmount() {
	if !c.mounted {
		return
	}
	c.mounted = false
	if err := c.mounter.Unmount(); err != nil {
		c.logger.Warn("unmounting maestro filesystem failed", "error", err)
	}
}
