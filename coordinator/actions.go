// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"github.com/gebr-project/gebr/lib/jobs"
	"github.com/gebr-project/gebr/lib/protocol"
	"github.com/gebr-project/gebr/lib/request"
)

// ConnectWorker asks the maestro to connect a daemon, adding it if
// new.
func (c *Coordinator) ConnectWorker(address, password string) error {
	return c.send(request.ConnectWorker(address, password), nil)
}

func (c *Coordinator) DisconnectWorker(address string) error {
	return c.send(request.DisconnectWorker(address), nil)
}

func (c *Coordinator) RemoveWorker(address string) error {
	return c.send(request.RemoveWorker(address), nil)
}

func (c *Coordinator) StopWorker(address string) error {
	return c.send(request.StopWorker(address), nil)
}

func (c *Coordinator) TagWorker(address, tag string) error {
	return c.send(request.InsertTag(address, tag), nil)
}

func (c *Coordinator) UntagWorker(address, tag string) error {
	return c.send(request.RemoveTag(address, tag), nil)
}

func (c *Coordinator) SetAutoconnect(address string, enabled bool) error {
	return c.send(request.SetAutoconnect(address, enabled), nil)
}

// RunRequest describes a flow run.
type RunRequest struct {
	Title string

	// Flow is the flow document sent as the request body.
	Flow []byte

	FlowID   string
	Speed    int
	Niceness string

	// Group and GroupType address the run: a tag with GroupType
	// "group", one daemon address with GroupType "daemon".
	Group          string
	GroupType      string
	ServerHostname string

	// After is the key of the job to queue behind, or empty to run
	// immediately.
	After string

	SessionID     string
	Paths         string
	SnapshotTitle string
	SnapshotID    string
}

// Run creates the pending job and sends the /run request. It returns
// the temporary id the job is known by until the maestro acknowledges
// it.
func (c *Coordinator) Run(run RunRequest) (string, error) {
	if c.session == nil {
		return "", ErrOffline
	}

	temporaryID := jobs.NewTemporaryID()
	options := request.RunOptions{
		SessionID:      run.SessionID,
		TempID:         temporaryID,
		FlowID:         run.FlowID,
		Speed:          run.Speed,
		Niceness:       run.Niceness,
		Group:          run.Group,
		GroupType:      run.GroupType,
		ServerHostname: run.ServerHostname,
		Host:           c.config.Hostname,
		Paths:          run.Paths,
		SnapshotTitle:  run.SnapshotTitle,
		SnapshotID:     run.SnapshotID,
	}
	// A parent still pending is named by its temporary id; one the
	// maestro knows is named by its id.
	if parent, ok := c.registry.Get(run.After); ok && parent.Pending() {
		options.After = parent.TemporaryID
	} else {
		options.ParentID = run.After
	}

	if err := c.send(request.RunFlow(options), run.Flow); err != nil {
		return "", err
	}
	c.registry.CreatePending(temporaryID, jobs.Job{
		ParentID:  run.After,
		Title:     run.Title,
		Hostname:  c.config.Hostname,
		Speed:     run.Speed,
		Niceness:  run.Niceness,
		Group:     run.Group,
		GroupType: run.GroupType,
	})
	c.notify(Event{Kind: EventJobDefined, JobID: temporaryID, JobStatus: jobs.StatusQueued})
	return temporaryID, nil
}

// PathOption selects a path operation.
type PathOption string

const (
	PathCreate PathOption = "create"
	PathRename PathOption = "rename"
	PathDelete PathOption = "delete"
)

// RequestPath asks the maestro to create, rename or delete paths on
// its host. paths is comma-joined; oldBase names the previous base
// directory for renames. The result arrives as an EventPathResult.
func (c *Coordinator) RequestPath(option PathOption, paths, oldBase string) error {
	if c.session == nil {
		return ErrOffline
	}
	return c.session.SendMessage(protocol.KindPath, paths, oldBase, string(option))
}
