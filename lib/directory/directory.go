// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory holds the client's view of the maestro's daemons.
//
// A Directory owns its Worker records; callers outside the owning
// event loop receive copies. Workers are keyed by address. The worker
// with the empty address is the auto-choose entry, which stands for
// "let the maestro pick" and is never stored.
package directory

import (
	"maps"
	"slices"

	"github.com/gebr-project/gebr/lib/protocol"
)

// AutoChooseName is the display name of the auto-choose entry.
const AutoChooseName = "Auto-choose"

// LocalServerName is the display name of a daemon on the client host.
const LocalServerName = "Local Server"

// Worker describes one daemon as the maestro reports it.
type Worker struct {
	Address     string
	Hostname    string
	State       protocol.State
	Tags        []string
	Autoconnect bool
	CPUCores    int
	CPUClock    float64 // MHz
	CPUModel    string
	Memory      string
	MPIFlavors  []string

	// LastError is the most recent daemon-level error, cleared when
	// the daemon logs in again.
	LastError *Error
}

// Error is a daemon-level error attached to a worker.
type Error struct {
	Kind    ErrorKind
	Type    string
	Message string
}

// ErrorKind classifies daemon errors the maestro forwards.
type ErrorKind uint8

const (
	ErrorOther ErrorKind = iota
	ErrorNFSMismatch
	ErrorDuplicateRegistration
	ErrorProtocolVersion
	ErrorConnectionRefusedElsewhere
	ErrorXauth
)

var errorKindNames = [...]string{
	ErrorOther:                      "other",
	ErrorNFSMismatch:                "nfs-mismatch",
	ErrorDuplicateRegistration:      "duplicate-registration",
	ErrorProtocolVersion:            "protocol-version-mismatch",
	ErrorConnectionRefusedElsewhere: "connection-refused-elsewhere",
	ErrorXauth:                      "xauth-failure",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return errorKindNames[ErrorOther]
}

// IsAutoChoose reports whether w is the auto-choose entry.
func (w *Worker) IsAutoChoose() bool { return w.Address == "" }

// DisplayName is the name to show for w.
func (w *Worker) DisplayName() string {
	switch {
	case w.IsAutoChoose():
		return AutoChooseName
	case IsLoopback(w.Address):
		return LocalServerName
	default:
		return w.Address
	}
}

// HasTag reports whether w carries tag.
func (w *Worker) HasTag(tag string) bool {
	return slices.Contains(w.Tags, tag)
}

func (w *Worker) clone() Worker {
	copied := *w
	copied.Tags = slices.Clone(w.Tags)
	copied.MPIFlavors = slices.Clone(w.MPIFlavors)
	if w.LastError != nil {
		lastError := *w.LastError
		copied.LastError = &lastError
	}
	return copied
}

// IsLoopback reports whether address names the client host.
func IsLoopback(address string) bool {
	switch address {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return false
}

// Status is the SST payload for one daemon.
type Status struct {
	Hostname    string
	Address     string
	State       protocol.State
	Autoconnect bool
	CPUCores    int
	CPUClock    float64
	CPUModel    string
	Memory      string
}

// Directory is the set of known workers in first-seen order.
type Directory struct {
	order   []string
	workers map[string]*Worker
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{workers: make(map[string]*Worker)}
}

// Len returns the number of stored workers, not counting auto-choose.
func (d *Directory) Len() int { return len(d.order) }

// Get returns a copy of the worker at address.
func (d *Directory) Get(address string) (Worker, bool) {
	worker, ok := d.workers[address]
	if !ok {
		return Worker{}, false
	}
	return worker.clone(), true
}

// Upsert applies a status report. It returns the previous state
// (StateUnknown for a new worker) and whether the worker was created.
func (d *Directory) Upsert(status Status) (previous protocol.State, created bool) {
	worker, ok := d.workers[status.Address]
	if !ok {
		worker = &Worker{Address: status.Address}
		d.workers[status.Address] = worker
		d.order = append(d.order, status.Address)
		created = true
	}
	previous = worker.State

	worker.Hostname = status.Hostname
	worker.State = status.State
	worker.Autoconnect = status.Autoconnect
	worker.CPUCores = status.CPUCores
	worker.CPUClock = status.CPUClock
	worker.CPUModel = status.CPUModel
	worker.Memory = status.Memory
	if status.State == protocol.StateLoggedIn {
		worker.LastError = nil
	}
	return previous, created
}

// Remove deletes the worker at address and reports whether it existed.
func (d *Directory) Remove(address string) bool {
	if _, ok := d.workers[address]; !ok {
		return false
	}
	delete(d.workers, address)
	d.order = slices.DeleteFunc(d.order, func(candidate string) bool { return candidate == address })
	return true
}

// SetTags replaces the worker's tag set. Duplicates and empty tags are
// dropped.
func (d *Directory) SetTags(address string, tags []string) bool {
	worker, ok := d.workers[address]
	if !ok {
		return false
	}
	worker.Tags = normalizeTags(tags)
	return true
}

// AddTag adds tag to the worker. It reports whether anything changed.
func (d *Directory) AddTag(address, tag string) bool {
	worker, ok := d.workers[address]
	if !ok || tag == "" || worker.HasTag(tag) {
		return false
	}
	worker.Tags = append(worker.Tags, tag)
	return true
}

// RemoveTag removes tag from the worker. It reports whether anything
// changed.
func (d *Directory) RemoveTag(address, tag string) bool {
	worker, ok := d.workers[address]
	if !ok || !worker.HasTag(tag) {
		return false
	}
	worker.Tags = slices.DeleteFunc(worker.Tags, func(candidate string) bool { return candidate == tag })
	return true
}

func (d *Directory) SetAutoconnect(address string, enabled bool) bool {
	worker, ok := d.workers[address]
	if !ok {
		return false
	}
	worker.Autoconnect = enabled
	return true
}

func (d *Directory) SetMPIFlavors(address string, flavors []string) bool {
	worker, ok := d.workers[address]
	if !ok {
		return false
	}
	worker.MPIFlavors = normalizeTags(flavors)
	return true
}

// SetError attaches a daemon error to the worker.
func (d *Directory) SetError(address string, failure Error) bool {
	worker, ok := d.workers[address]
	if !ok {
		return false
	}
	worker.LastError = &failure
	return true
}

// List returns workers whose tags include any of groups, or every
// worker when groups is empty, in first-seen order. With
// includeAutoChoose the auto-choose entry comes first.
func (d *Directory) List(groups []string, includeAutoChoose bool) []Worker {
	var result []Worker
	if includeAutoChoose {
		result = append(result, Worker{})
	}
	for _, address := range d.order {
		worker := d.workers[address]
		if len(groups) > 0 && !slices.ContainsFunc(groups, worker.HasTag) {
			continue
		}
		result = append(result, worker.clone())
	}
	return result
}

// AllTags returns the union of every worker's tags, sorted.
func (d *Directory) AllTags() []string {
	union := make(map[string]struct{})
	for _, worker := range d.workers {
		for _, tag := range worker.Tags {
			union[tag] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(union))
}

// LoggedIn returns the number of workers in StateLoggedIn.
func (d *Directory) LoggedIn() int {
	count := 0
	for _, worker := range d.workers {
		if worker.State == protocol.StateLoggedIn {
			count++
		}
	}
	return count
}

func normalizeTags(tags []string) []string {
	var result []string
	for _, tag := range tags {
		if tag == "" || slices.Contains(result, tag) {
			continue
		}
		result = append(result, tag)
	}
	return result
}
