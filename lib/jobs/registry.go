// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package jobs

import (
	"slices"

	"github.com/oklog/ulid/v2"
)

// ImmediatelyTitle is the title of the queue choice that runs a flow
// without waiting for another job.
const ImmediatelyTitle = "Immediately"

// Outcome reports what Define did with a definition.
type Outcome uint8

const (
	// Refreshed means the job was already known by its id.
	Refreshed Outcome = iota
	// Promoted means a pending job was found by its temporary id and
	// now carries the permanent id.
	Promoted
	// Created means the definition introduced a new job.
	Created
)

func (o Outcome) String() string {
	switch o {
	case Promoted:
		return "promoted"
	case Created:
		return "created"
	default:
		return "refreshed"
	}
}

// QueueChoice is one entry of the "run after" selector.
type QueueChoice struct {
	Title string
	// JobID is empty for the Immediately entry.
	JobID string
}

// Registry owns the client's job records. Each record is allocated
// once and keeps its identity through promotion; callers outside the
// owning event loop receive copies.
type Registry struct {
	jobs    map[string]*Job
	pending map[string]*Job
	order   []*Job
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs:    make(map[string]*Job),
		pending: make(map[string]*Job),
	}
}

// NewTemporaryID returns a fresh client-side job id. ULIDs sort by
// creation time, so pending jobs list in submission order.
func NewTemporaryID() string {
	return "t" + ulid.Make().String()
}

// Len returns the number of jobs, pending ones included.
func (r *Registry) Len() int { return len(r.order) }

// CreatePending records a job submitted by this client and not yet
// acknowledged by the maestro. template carries the descriptive
// fields the client already knows, including ParentID.
// It returns false if the temporary id is already in use.
func (r *Registry) CreatePending(temporaryID string, template Job) bool {
	if temporaryID == "" {
		return false
	}
	if _, exists := r.pending[temporaryID]; exists {
		return false
	}
	job := template.Clone()
	job.ID = ""
	job.TemporaryID = temporaryID
	if job.Status == StatusUnknown {
		job.Status = StatusQueued
	}
	r.pending[temporaryID] = &job
	r.order = append(r.order, &job)
	return true
}

// Promote gives the pending job temporaryID its permanent id. The
// record is moved, never copied. It returns false when no pending job
// has that temporary id or the permanent id is taken.
func (r *Registry) Promote(temporaryID, id string) bool {
	job, ok := r.pending[temporaryID]
	if !ok || id == "" {
		return false
	}
	if _, taken := r.jobs[id]; taken {
		return false
	}
	delete(r.pending, temporaryID)
	job.ID = id
	job.TemporaryID = ""
	r.jobs[id] = job
	return true
}

// Define applies a JOB message: look up by id, else promote by
// temporary id, else create. Fields computed by the maestro after
// dispatch are always refreshed; descriptive fields are only taken
// from the definition of a brand-new job.
func (r *Registry) Define(definition Definition) (Outcome, bool) {
	if definition.ID == "" {
		return Refreshed, false
	}

	outcome := Refreshed
	job, ok := r.jobs[definition.ID]
	if !ok && definition.TemporaryID != "" && r.Promote(definition.TemporaryID, definition.ID) {
		job = r.jobs[definition.ID]
		outcome = Promoted
		if definition.ParentID != "" {
			job.ParentID = definition.ParentID
		}
	}
	if job == nil {
		job = &Job{ID: definition.ID, ParentID: definition.ParentID}
		r.jobs[definition.ID] = job
		r.order = append(r.order, job)
		outcome = Created
	}

	job.ServerList = slices.Clone(definition.ServerList)
	job.NProcesses = definition.NProcesses
	job.SubmitDate = definition.SubmitDate
	job.Status = definition.Status
	job.InputPath = definition.InputPath
	job.OutputPath = definition.OutputPath
	job.ErrorPath = definition.ErrorPath
	job.RunType = definition.RunType
	job.MPIOwner = definition.MPIOwner
	job.MPIFlavor = definition.MPIFlavor

	if outcome == Created {
		job.Hostname = definition.Hostname
		job.Title = definition.Title
		job.Niceness = definition.Niceness
		job.Group = definition.Group
		job.GroupType = definition.GroupType
		job.Speed = definition.Speed
		if definition.StartDate != "" {
			job.StartDate = definition.StartDate
		}
		if definition.FinishDate != "" {
			job.FinishDate = definition.FinishDate
		}
	}
	return outcome, true
}

// Get returns a copy of the job addressed by key, which may be a
// permanent or a temporary id.
func (r *Registry) Get(key string) (Job, bool) {
	job := r.lookup(key)
	if job == nil {
		return Job{}, false
	}
	return job.Clone(), true
}

func (r *Registry) lookup(key string) *Job {
	if job, ok := r.jobs[key]; ok {
		return job
	}
	return r.pending[key]
}

// SetStatus updates a job's status. parameter carries the start date
// for running jobs and the finish date for terminal ones.
func (r *Registry) SetStatus(id string, status Status, parameter string) bool {
	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	job.Status = status
	if parameter != "" {
		switch {
		case status == StatusRunning:
			job.StartDate = parameter
		case status.Terminal():
			job.FinishDate = parameter
		}
	}
	return true
}

// AppendOutput appends text to the output of a zero-based fraction.
func (r *Registry) AppendOutput(id string, fraction int, text string) bool {
	job, ok := r.jobs[id]
	if !ok || fraction < 0 {
		return false
	}
	if job.Output == nil {
		job.Output = make(map[int]string)
	}
	job.Output[fraction] += text
	return true
}

// SetCommandLine records the command line of a zero-based fraction.
func (r *Registry) SetCommandLine(id string, fraction int, text string) bool {
	job, ok := r.jobs[id]
	if !ok || fraction < 0 {
		return false
	}
	if job.CommandLine == nil {
		job.CommandLine = make(map[int]string)
	}
	job.CommandLine[fraction] = text
	return true
}

func (r *Registry) SetIssues(id, issues string) bool {
	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	job.Issues = issues
	return true
}

// Remove deletes the job addressed by key. Unknown keys are a no-op.
func (r *Registry) Remove(key string) bool {
	job := r.lookup(key)
	if job == nil {
		return false
	}
	if job.ID != "" {
		delete(r.jobs, job.ID)
	} else {
		delete(r.pending, job.TemporaryID)
	}
	r.order = slices.DeleteFunc(r.order, func(candidate *Job) bool { return candidate == job })
	return true
}

// Jobs returns copies of every job in the order they became known.
func (r *Registry) Jobs() []Job {
	result := make([]Job, 0, len(r.order))
	for _, job := range r.order {
		result = append(result, job.Clone())
	}
	return result
}

// ActiveJobs returns acknowledged jobs that are queued or running, in
// the order they became known.
func (r *Registry) ActiveJobs() []Job {
	var result []Job
	for _, job := range r.order {
		if !job.Pending() && job.Status.Active() {
			result = append(result, job.Clone())
		}
	}
	return result
}

// QueueChoices returns the "run after" choices: Immediately, then one
// entry per active job.
func (r *Registry) QueueChoices() []QueueChoice {
	choices := []QueueChoice{{Title: ImmediatelyTitle}}
	for _, job := range r.ActiveJobs() {
		choices = append(choices, QueueChoice{Title: job.Title, JobID: job.ID})
	}
	return choices
}
