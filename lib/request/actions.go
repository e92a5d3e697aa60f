// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package request

import "strconv"

// ConnectWorker asks the maestro to connect to a daemon. An empty
// password lets the maestro try keys and its own cached credentials.
func ConnectWorker(address, password string) string {
	return Build(Connect, P("address", address), P("pass", password))
}

func DisconnectWorker(address string) string {
	return Build(Disconnect, P("address", address))
}

func RemoveWorker(address string) string {
	return Build(Remove, P("address", address))
}

func StopWorker(address string) string {
	return Build(Stop, P("address", address))
}

func InsertTag(address, tag string) string {
	return Build(TagInsert, P("server", address), P("tag", tag))
}

func RemoveTag(address, tag string) string {
	return Build(TagRemove, P("server", address), P("tag", tag))
}

func SetAutoconnect(address string, enabled bool) string {
	return Build(Autoconnect, P("server", address), P("ac", onOff(enabled)))
}

// AnswerQuestion relays the user's answer to a host question the
// maestro asked on a daemon's behalf.
func AnswerQuestion(address string, accepted bool) string {
	return Build(SSHAnswer, P("address", address), P("response", strconv.FormatBool(accepted)))
}

// AnswerConfirm relays a confirmation answer for action on address.
func AnswerConfirm(address, action string, accepted bool) string {
	return Build(Confirm, P("address", address), P("action", action), P("response", strconv.FormatBool(accepted)))
}

// RunOptions describes a run request. The flow document itself travels
// as the request body.
type RunOptions struct {
	// SessionID identifies the client session submitting the run.
	SessionID string
	// TempID is the client-generated id of the pending job.
	TempID string
	// After queues the run behind a job still known only by its
	// temporary id. When empty, ParentID names the queue instead.
	After    string
	ParentID string
	FlowID   string
	Speed    int
	Niceness string
	// Group is the tag (or daemon address, for GroupType "daemon")
	// the run is addressed to.
	Group     string
	GroupType string
	// ServerHostname pins the run to one daemon inside the group.
	ServerHostname string
	// Host is the submitting client's hostname.
	Host          string
	Paths         string
	SnapshotTitle string
	SnapshotID    string
}

// RunFlow renders a /run request.
func RunFlow(options RunOptions) string {
	params := []Param{P("gid", options.SessionID)}
	if options.After != "" {
		params = append(params, P("temp_parent", options.After))
	} else {
		params = append(params, P("parent_id", options.ParentID))
	}
	params = append(params,
		P("flow_id", options.FlowID),
		P("speed", strconv.Itoa(options.Speed)),
		P("nice", options.Niceness),
		P("name", options.Group),
	)
	if options.ServerHostname != "" {
		params = append(params, P("server-hostname", options.ServerHostname))
	}
	params = append(params,
		P("group_type", options.GroupType),
		P("host", options.Host),
		P("temp_id", options.TempID),
		P("paths", options.Paths),
		P("snapshot_title", options.SnapshotTitle),
		P("snapshot_id", options.SnapshotID),
	)
	return Build(Run, params...)
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
