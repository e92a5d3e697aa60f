// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package jobs

import (
	"maps"
	"slices"
	"strings"
)

// Status is a job's position in its life cycle. Finished, Failed and
// Canceled are terminal.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusQueued
	StatusRunning
	StatusFinished
	StatusFailed
	StatusCanceled
)

var statusNames = [...]string{
	StatusUnknown:  "unknown",
	StatusQueued:   "queued",
	StatusRunning:  "running",
	StatusFinished: "finished",
	StatusFailed:   "failed",
	StatusCanceled: "canceled",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return statusNames[StatusUnknown]
}

// Terminal reports whether s closes the job.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusCanceled
}

// Active reports whether the job can still be queued behind.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusRunning
}

// ParseStatus maps a wire status name to a Status, case-insensitively.
// "cancelled" is accepted as a spelling of canceled.
func ParseStatus(name string) Status {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "cancelled" {
		return StatusCanceled
	}
	for status, statusName := range statusNames {
		if statusName == name {
			return Status(status)
		}
	}
	return StatusUnknown
}

// Job is one submitted flow run. Fractions are zero-based here; the
// wire addresses them from one.
type Job struct {
	ID          string
	TemporaryID string
	// ParentID is the job this one is queued behind, or empty.
	ParentID string

	Title       string
	Hostname    string
	Status      Status
	NProcesses  string
	ServerList  []string
	Group       string
	GroupType   string
	Niceness    string
	Speed       int
	InputPath   string
	OutputPath  string
	ErrorPath   string
	SubmitDate  string
	StartDate   string
	FinishDate  string
	RunType     string
	MPIOwner    string
	MPIFlavor   string
	Issues      string
	CommandLine map[int]string
	Output      map[int]string
}

// Key is the id the job is currently addressed by: its permanent id
// once assigned, its temporary id before that.
func (j *Job) Key() string {
	if j.ID != "" {
		return j.ID
	}
	return j.TemporaryID
}

// Pending reports whether the maestro has not yet acknowledged the job.
func (j *Job) Pending() bool { return j.ID == "" }

// FullOutput concatenates every fraction's output in fraction order.
func (j *Job) FullOutput() string {
	var builder strings.Builder
	for _, index := range slices.Sorted(maps.Keys(j.Output)) {
		builder.WriteString(j.Output[index])
	}
	return builder.String()
}

// Clone returns a deep copy.
func (j *Job) Clone() Job {
	copied := *j
	copied.ServerList = slices.Clone(j.ServerList)
	copied.CommandLine = maps.Clone(j.CommandLine)
	copied.Output = maps.Clone(j.Output)
	return copied
}

// Definition is the payload of a JOB message.
type Definition struct {
	ID          string
	TemporaryID string
	NProcesses  string
	ServerList  []string
	Hostname    string
	Title       string
	ParentID    string
	Niceness    string
	InputPath   string
	OutputPath  string
	ErrorPath   string
	SubmitDate  string
	Group       string
	GroupType   string
	Speed       int
	Status      Status
	StartDate   string
	FinishDate  string
	RunType     string
	MPIOwner    string
	MPIFlavor   string
}
