// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"github.com/gebr-project/gebr/lib/directory"
	"github.com/gebr-project/gebr/lib/jobs"
	"github.com/gebr-project/gebr/lib/protocol"
	"github.com/gebr-project/gebr/transport"
)

// EventKind says what changed.
type EventKind uint8

const (
	EventInvalid EventKind = iota

	// EventSessionState reports a transport state change. Failure is
	// set when the session went down on an error.
	EventSessionState
	// EventSessionError reports a maestro-level error; it is also the
	// coordinator's sticky error until the next connect.
	EventSessionError
	// EventSessionWarning reports a problem that leaves the session
	// usable, such as a failed display setup.
	EventSessionWarning

	EventWorkerChanged
	EventWorkerRemoved
	EventWorkerError
	EventAutoconnectChanged
	EventGroupsChanged

	// EventJobDefined reports a job seen for the first time, or a
	// pending job the maestro just acknowledged.
	EventJobDefined
	EventJobChanged
	EventJobClosed

	EventHomeChanged
	EventPathResult
)

var eventKindNames = [...]string{
	EventInvalid:            "invalid",
	EventSessionState:       "session-state",
	EventSessionError:       "session-error",
	EventSessionWarning:     "session-warning",
	EventWorkerChanged:      "worker-changed",
	EventWorkerRemoved:      "worker-removed",
	EventWorkerError:        "worker-error",
	EventAutoconnectChanged: "autoconnect-changed",
	EventGroupsChanged:      "groups-changed",
	EventJobDefined:         "job-defined",
	EventJobChanged:         "job-changed",
	EventJobClosed:          "job-closed",
	EventHomeChanged:        "home-changed",
	EventPathResult:         "path-result",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return eventKindNames[EventInvalid]
}

// Event is one change. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	// Address is the worker concerned, for worker events.
	Address string

	// JobID is the job's key: its id, or its temporary id while
	// pending. TemporaryID is set when a pending job was promoted.
	JobID       string
	TemporaryID string
	JobStatus   jobs.Status

	State       protocol.State
	Autoconnect bool

	// Failure is the session failure (EventSessionState,
	// EventSessionError).
	Failure *transport.Failure

	// WorkerError is the classified daemon error (EventWorkerError).
	WorkerError *directory.Error

	// Message is free text: warnings, path result codes.
	Message string
	Path    string
}

// Observer receives events on the coordinator's loop.
type Observer interface {
	Notify(event Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(event Event)

func (f ObserverFunc) Notify(event Event) { f(event) }
