// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"strconv"
	"strings"

	"github.com/gebr-project/gebr/lib/directory"
	"github.com/gebr-project/gebr/lib/jobs"
	"github.com/gebr-project/gebr/lib/protocol"
	"github.com/gebr-project/gebr/lib/request"
	"github.com/gebr-project/gebr/transport"
)

// handlers is the dispatch table. Field counts were checked by the
// decoder, so handlers index fields freely.
var handlers = map[protocol.Kind]func(*Coordinator, protocol.Message){
	protocol.KindServerStatus:    (*Coordinator).handleServerStatus,
	protocol.KindServerStatusAll: (*Coordinator).handleServerStatus,
	protocol.KindServerRemove:    (*Coordinator).handleServerRemove,
	protocol.KindGroups:          (*Coordinator).handleGroups,
	protocol.KindAutoconnect:     (*Coordinator).handleAutoconnect,
	protocol.KindMPI:             (*Coordinator).handleMPI,
	protocol.KindJob:             (*Coordinator).handleJob,
	protocol.KindStatus:          (*Coordinator).handleStatus,
	protocol.KindOutput:          (*Coordinator).handleOutput,
	protocol.KindCommand:         (*Coordinator).handleCommand,
	protocol.KindIssues:          (*Coordinator).handleIssues,
	protocol.KindJobClose:        (*Coordinator).handleJobClose,
	protocol.KindError:           (*Coordinator).handleError,
	protocol.KindReturn:          (*Coordinator).handleReturn,
	protocol.KindHome:            (*Coordinator).handleHome,
	protocol.KindPassword:        (*Coordinator).handlePassword,
	protocol.KindQuestion:        (*Coordinator).handleQuestion,
	protocol.KindConfirm:         (*Coordinator).handleConfirm,
}

func (c *Coordinator) handleServerStatus(message protocol.Message) {
	cores, _ := strconv.Atoi(message.Field(4))
	clock, _ := strconv.ParseFloat(message.Field(5), 64)
	status := directory.Status{
		Hostname:    message.Field(0),
		Address:     message.Field(1),
		State:       protocol.ParseState(message.Field(2)),
		Autoconnect: message.Field(3) == "on",
		CPUCores:    cores,
		CPUClock:    clock,
		CPUModel:    message.Field(6),
		Memory:      message.Field(7),
	}
	previous, _ := c.workers.Upsert(status)

	switch {
	case status.State == protocol.StateLoggedIn && previous != protocol.StateLoggedIn:
		c.mount()
	case c.workers.LoggedIn() == 0:
		c.unmount()
	}
	c.notify(Event{Kind: EventWorkerChanged, Address: status.Address, State: status.State})
}

func (c *Coordinator) handleServerRemove(message protocol.Message) {
	address := message.Field(0)
	if !c.workers.Remove(address) {
		c.logger.Debug("removal of unknown worker", "address", address)
		return
	}
	if c.workers.LoggedIn() == 0 {
		c.unmount()
	}
	c.notify(Event{Kind: EventWorkerRemoved, Address: address})
}

func (c *Coordinator) handleGroups(message protocol.Message) {
	address := message.Field(0)
	if !c.workers.SetTags(address, splitList(message.Field(1))) {
		c.logger.Debug("tags for unknown worker", "address", address)
		return
	}
	c.notify(Event{Kind: EventGroupsChanged, Address: address})
}

func (c *Coordinator) handleAutoconnect(message protocol.Message) {
	address, enabled := message.Field(0), message.Field(1) == "on"
	if !c.workers.SetAutoconnect(address, enabled) {
		c.logger.Debug("autoconnect for unknown worker", "address", address)
		return
	}
	c.notify(Event{Kind: EventAutoconnectChanged, Address: address, Autoconnect: enabled})
}

func (c *Coordinator) handleMPI(message protocol.Message) {
	address := message.Field(0)
	if !c.workers.SetMPIFlavors(address, splitList(message.Field(1))) {
		c.logger.Debug("mpi flavors for unknown worker", "address", address)
		return
	}
	c.notify(Event{Kind: EventWorkerChanged, Address: address})
}

// handleJob applies a JOB definition. Fields in wire order: id, temp
// id, processes, servers, hostname, title, parent id, niceness, input,
// output, error, submit date, group, group type, speed, status, start
// date, finish date, run type, mpi owner, mpi flavor.
func (c *Coordinator) handleJob(message protocol.Message) {
	speed, _ := strconv.Atoi(message.Field(14))
	definition := jobs.Definition{
		ID:          message.Field(0),
		TemporaryID: message.Field(1),
		NProcesses:  message.Field(2),
		ServerList:  splitList(message.Field(3)),
		Hostname:    message.Field(4),
		Title:       message.Field(5),
		ParentID:    message.Field(6),
		Niceness:    message.Field(7),
		InputPath:   message.Field(8),
		OutputPath:  message.Field(9),
		ErrorPath:   message.Field(10),
		SubmitDate:  message.Field(11),
		Group:       message.Field(12),
		GroupType:   message.Field(13),
		Speed:       speed,
		Status:      jobs.ParseStatus(message.Field(15)),
		StartDate:   message.Field(16),
		FinishDate:  message.Field(17),
		RunType:     message.Field(18),
		MPIOwner:    message.Field(19),
		MPIFlavor:   message.Field(20),
	}
	outcome, ok := c.registry.Define(definition)
	if !ok {
		c.logger.Warn("job definition without an id", "temporary_id", definition.TemporaryID)
		return
	}

	event := Event{Kind: EventJobChanged, JobID: definition.ID, JobStatus: definition.Status}
	switch outcome {
	case jobs.Created:
		event.Kind = EventJobDefined
	case jobs.Promoted:
		event.Kind = EventJobDefined
		event.TemporaryID = definition.TemporaryID
	}
	c.notify(event)
}

func (c *Coordinator) handleStatus(message protocol.Message) {
	id, status := message.Field(0), jobs.ParseStatus(message.Field(1))
	if !c.registry.SetStatus(id, status, message.Field(2)) {
		c.logger.Debug("status for unknown job", "job", id)
		return
	}
	c.notify(Event{Kind: EventJobChanged, JobID: id, JobStatus: status})
}

func (c *Coordinator) handleOutput(message protocol.Message) {
	id := message.Field(0)
	fraction, ok := parseFraction(message.Field(1))
	if !ok || !c.registry.AppendOutput(id, fraction, message.Field(2)) {
		c.logger.Debug("output for unknown job or fraction", "job", id, "fraction", message.Field(1))
		return
	}
	c.notify(Event{Kind: EventJobChanged, JobID: id})
}

func (c *Coordinator) handleCommand(message protocol.Message) {
	id := message.Field(0)
	fraction, ok := parseFraction(message.Field(1))
	if !ok || !c.registry.SetCommandLine(id, fraction, message.Field(2)) {
		c.logger.Debug("command line for unknown job or fraction", "job", id, "fraction", message.Field(1))
		return
	}
	c.notify(Event{Kind: EventJobChanged, JobID: id})
}

func (c *Coordinator) handleIssues(message protocol.Message) {
	id := message.Field(0)
	if !c.registry.SetIssues(id, message.Field(1)) {
		c.logger.Debug("issues for unknown job", "job", id)
		return
	}
	c.notify(Event{Kind: EventJobChanged, JobID: id})
}

func (c *Coordinator) handleJobClose(message protocol.Message) {
	id := message.Field(0)
	if !c.registry.Remove(id) {
		return
	}
	c.notify(Event{Kind: EventJobClosed, JobID: id})
}

// handleError routes ERR (address, subsystem, type, message). Daemon
// errors attach to the worker; anything else is the maestro's own.
func (c *Coordinator) handleError(message protocol.Message) {
	address, subsystem, errorType, text := message.Field(0), message.Field(1), message.Field(2), message.Field(3)

	if subsystem != "daemon" {
		kind, known := transport.ParseErrorKind(errorType)
		switch {
		case !known:
			c.lastError = &transport.Failure{Kind: transport.ErrorServer, Message: text}
		case kind == transport.ErrorNone:
			c.lastError = nil
		default:
			c.lastError = &transport.Failure{Kind: kind, Message: text}
		}
		c.notify(Event{Kind: EventSessionError, Address: address, Failure: c.lastError, Message: text})
		return
	}

	failure := directory.Error{Kind: classifyDaemonError(errorType), Type: errorType, Message: text}
	if !c.workers.SetError(address, failure) {
		c.logger.Debug("error for unknown worker", "address", address, "type", errorType)
	}
	if failure.Kind == directory.ErrorDuplicateRegistration {
		if err := c.send(request.RemoveWorker(address), nil); err != nil {
			c.logger.Warn("removing duplicate worker", "address", address, "error", err)
		}
	}
	c.notify(Event{Kind: EventWorkerError, Address: address, WorkerError: &failure, Message: text})
}

func classifyDaemonError(errorType string) directory.ErrorKind {
	switch strings.TrimPrefix(errorType, "error:") {
	case "nfs":
		return directory.ErrorNFSMismatch
	case "id":
		return directory.ErrorDuplicateRegistration
	case "protocol":
		return directory.ErrorProtocolVersion
	case "connection-refused":
		return directory.ErrorConnectionRefusedElsewhere
	case "xauth":
		return directory.ErrorXauth
	default:
		return directory.ErrorOther
	}
}

func (c *Coordinator) handleReturn(message protocol.Message) {
	switch message.Field(0) {
	case protocol.KindLogin.Code():
		if c.session == nil || !c.session.Remote() {
			return
		}
		if message.Field(2) == "0" {
			c.notify(Event{
				Kind:    EventSessionWarning,
				Message: "The maestro could not set up the display (xauth failure). Graphical programs will not work.",
			})
		}
	case protocol.KindPath.Code():
		c.notify(Event{Kind: EventPathResult, Message: message.Field(1), Path: message.Field(2)})
	default:
		c.logger.Debug("ignoring return", "answers", message.Field(0))
	}
}

func (c *Coordinator) handleHome(message protocol.Message) {
	c.home = message.Field(0)
	c.notify(Event{Kind: EventHomeChanged, Path: c.home})
}

// parseFraction converts a one-based wire fraction to an index.
func parseFraction(field string) (int, bool) {
	fraction, err := strconv.Atoi(field)
	if err != nil || fraction < 1 {
		return 0, false
	}
	return fraction - 1, true
}

// splitList splits a comma-joined wire list, dropping empty items.
func splitList(field string) []string {
	var items []string
	for item := range strings.SplitSeq(field, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
