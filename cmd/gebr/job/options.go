// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/gebr-project/gebr/coordinator"
)

// Options is the file form of a run request.
type Options struct {
	Title          string `json:"title"`
	Flow           string `json:"flow"` // path of the flow document
	FlowID         string `json:"flow_id"`
	Speed          int    `json:"speed"`
	Niceness       string `json:"niceness"`
	Group          string `json:"group"`
	GroupType      string `json:"group_type"`
	ServerHostname string `json:"server_hostname"`
	After          string `json:"after"`
	Paths          string `json:"paths"`
	SnapshotTitle  string `json:"snapshot_title"`
	SnapshotID     string `json:"snapshot_id"`
}

// ParseOptions strips JSONC comments and trailing commas from data and
// decodes the result. Unknown fields are rejected so a typo does not
// silently drop an option.
func ParseOptions(data []byte) (Options, error) {
	var options Options
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&options); err != nil {
		return Options{}, fmt.Errorf("parsing run options: %w", err)
	}
	return options, nil
}

// ReadOptions reads and parses a JSONC options file.
func ReadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("reading %s: %w", path, err)
	}
	options, err := ParseOptions(data)
	if err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return options, nil
}

// Merge overlays the non-zero fields of override onto o.
func (o Options) Merge(override Options) Options {
	merged := o
	for _, field := range []struct {
		target *string
		value  string
	}{
		{&merged.Title, override.Title},
		{&merged.Flow, override.Flow},
		{&merged.FlowID, override.FlowID},
		{&merged.Niceness, override.Niceness},
		{&merged.Group, override.Group},
		{&merged.GroupType, override.GroupType},
		{&merged.ServerHostname, override.ServerHostname},
		{&merged.After, override.After},
		{&merged.Paths, override.Paths},
		{&merged.SnapshotTitle, override.SnapshotTitle},
		{&merged.SnapshotID, override.SnapshotID},
	} {
		if field.value != "" {
			*field.target = field.value
		}
	}
	if override.Speed != 0 {
		merged.Speed = override.Speed
	}
	return merged
}

// Request builds the coordinator request, with flow as the document
// body.
func (o Options) Request(flow []byte) (coordinator.RunRequest, error) {
	if o.Group == "" {
		return coordinator.RunRequest{}, errors.New("a run needs a group: a tag, or a worker address with group type daemon")
	}
	groupType := o.GroupType
	if groupType == "" {
		groupType = "group"
	}
	if groupType != "group" && groupType != "daemon" {
		return coordinator.RunRequest{}, fmt.Errorf("group type must be group or daemon, got %q", groupType)
	}
	title := o.Title
	if title == "" {
		title = o.FlowID
	}
	return coordinator.RunRequest{
		Title:          title,
		Flow:           flow,
		FlowID:         o.FlowID,
		Speed:          o.Speed,
		Niceness:       o.Niceness,
		Group:          o.Group,
		GroupType:      groupType,
		ServerHostname: o.ServerHostname,
		After:          o.After,
		Paths:          o.Paths,
		SnapshotTitle:  o.SnapshotTitle,
		SnapshotID:     o.SnapshotID,
	}, nil
}
