// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"strings"

	"github.com/gebr-project/gebr/lib/directory"
	"github.com/gebr-project/gebr/lib/jobs"
	"github.com/gebr-project/gebr/lib/protocol"
)

// WorkerRow is the JSON form of a worker.
type WorkerRow struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Hostname    string   `json:"hostname,omitempty"`
	State       string   `json:"state"`
	Autoconnect bool     `json:"autoconnect"`
	Tags        []string `json:"tags,omitempty"`
	CPUCores    int      `json:"cpu_cores,omitempty"`
	CPUClock    float64  `json:"cpu_clock_mhz,omitempty"`
	CPUModel    string   `json:"cpu_model,omitempty"`
	Memory      string   `json:"memory,omitempty"`
	MPIFlavors  []string `json:"mpi_flavors,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// WorkerRows converts workers for JSON output.
func WorkerRows(workers []directory.Worker) []WorkerRow {
	rows := make([]WorkerRow, 0, len(workers))
	for _, worker := range workers {
		row := WorkerRow{
			Name:        worker.DisplayName(),
			Address:     worker.Address,
			Hostname:    worker.Hostname,
			State:       worker.State.String(),
			Autoconnect: worker.Autoconnect,
			Tags:        worker.Tags,
			CPUCores:    worker.CPUCores,
			CPUClock:    worker.CPUClock,
			CPUModel:    worker.CPUModel,
			Memory:      worker.Memory,
			MPIFlavors:  worker.MPIFlavors,
		}
		if worker.LastError != nil {
			row.Error = fmt.Sprintf("%s: %s", worker.LastError.Kind, worker.LastError.Message)
		}
		rows = append(rows, row)
	}
	return rows
}

// WorkerTable renders workers for a terminal.
func WorkerTable(workers []directory.Worker) *Table {
	table := &Table{Headers: []string{"NAME", "ADDRESS", "STATE", "AUTO", "TAGS", "CPU", "MEMORY", "ERROR"}}
	for _, row := range WorkerRows(workers) {
		cpu := ""
		if row.CPUCores > 0 {
			cpu = fmt.Sprintf("%d x %.0f MHz", row.CPUCores, row.CPUClock)
		}
		auto := "off"
		if row.Autoconnect {
			auto = "on"
		}
		table.AddRow(row.Name, row.Address, styleState(row.State), auto,
			strings.Join(row.Tags, ","), cpu, row.Memory, StyleBad(row.Error))
	}
	return table
}

func styleState(state string) string {
	switch protocol.ParseState(state) {
	case protocol.StateLoggedIn:
		return StyleGood(state)
	case protocol.StateDisconnected, protocol.StateUnknown:
		return StyleFaint(state)
	default:
		return StyleWarning(state)
	}
}

// JobRow is the JSON form of a job.
type JobRow struct {
	ID          string   `json:"id,omitempty"`
	TemporaryID string   `json:"temporary_id,omitempty"`
	ParentID    string   `json:"parent_id,omitempty"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Hostname    string   `json:"hostname,omitempty"`
	Group       string   `json:"group,omitempty"`
	GroupType   string   `json:"group_type,omitempty"`
	Servers     []string `json:"servers,omitempty"`
	Processes   string   `json:"processes,omitempty"`
	SubmitDate  string   `json:"submit_date,omitempty"`
	StartDate   string   `json:"start_date,omitempty"`
	FinishDate  string   `json:"finish_date,omitempty"`
	Issues      string   `json:"issues,omitempty"`
	Output      string   `json:"output,omitempty"`
}

// QueueRow is the JSON form of a "run after" choice.
type QueueRow struct {
	Title string `json:"title"`
	JobID string `json:"job_id,omitempty"`
}

// JobRows converts jobs for JSON output. Output is included only when
// withOutput is set.
func JobRows(list []jobs.Job, withOutput bool) []JobRow {
	rows := make([]JobRow, 0, len(list))
	for _, job := range list {
		row := JobRow{
			ID:          job.ID,
			TemporaryID: job.TemporaryID,
			ParentID:    job.ParentID,
			Title:       job.Title,
			Status:      job.Status.String(),
			Hostname:    job.Hostname,
			Group:       job.Group,
			GroupType:   job.GroupType,
			Servers:     job.ServerList,
			Processes:   job.NProcesses,
			SubmitDate:  job.SubmitDate,
			StartDate:   job.StartDate,
			FinishDate:  job.FinishDate,
			Issues:      job.Issues,
		}
		if withOutput {
			row.Output = job.FullOutput()
		}
		rows = append(rows, row)
	}
	return rows
}

// JobTable renders jobs for a terminal.
func JobTable(list []jobs.Job) *Table {
	table := &Table{Headers: []string{"ID", "TITLE", "STATUS", "GROUP", "SERVERS", "SUBMITTED", "AFTER"}}
	for _, job := range list {
		id := job.Key()
		if job.Pending() {
			id = StyleFaint(id)
		}
		table.AddRow(id, job.Title, styleStatus(job.Status), job.Group,
			strings.Join(job.ServerList, ","), job.SubmitDate, job.ParentID)
	}
	return table
}

// QueueRows converts queue choices for JSON output.
func QueueRows(choices []jobs.QueueChoice) []QueueRow {
	rows := make([]QueueRow, 0, len(choices))
	for _, choice := range choices {
		rows = append(rows, QueueRow{Title: choice.Title, JobID: choice.JobID})
	}
	return rows
}

// QueueTable renders queue choices. The AFTER column is the value to
// pass to "gebr run --after".
func QueueTable(choices []jobs.QueueChoice) *Table {
	table := &Table{Headers: []string{"QUEUE", "AFTER"}}
	for _, choice := range choices {
		table.AddRow(choice.Title, choice.JobID)
	}
	return table
}

func styleStatus(status jobs.Status) string {
	switch status {
	case jobs.StatusFinished:
		return StyleGood(status.String())
	case jobs.StatusFailed, jobs.StatusCanceled:
		return StyleBad(status.String())
	case jobs.StatusRunning, jobs.StatusQueued:
		return StyleWarning(status.String())
	default:
		return StyleFaint(status.String())
	}
}
