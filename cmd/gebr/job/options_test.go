// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseOptionsJSONC(t *testing.T) {
	options, err := ParseOptions([]byte(`{
		// run on the fast machines
		"title": "blast",
		"group": "fast",
		"speed": 3, /* three processes */
		"after": "42",
	}`))
	if err != nil {
		t.Fatalf("ParseOptions() error: %v", err)
	}
	if options.Title != "blast" || options.Group != "fast" || options.Speed != 3 || options.After != "42" {
		t.Errorf("options = %+v", options)
	}
}

func TestParseOptionsRejectsUnknownFields(t *testing.T) {
	_, err := ParseOptions([]byte(`{"grup": "fast"}`))
	if err == nil || !strings.Contains(err.Error(), "grup") {
		t.Errorf("ParseOptions() with a typo = %v", err)
	}
}

func TestReadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonc")
	if err := os.WriteFile(path, []byte(`{"group": "gpu"}`), 0o644); err != nil {
		t.Fatalf("writing options: %v", err)
	}
	options, err := ReadOptions(path)
	if err != nil {
		t.Fatalf("ReadOptions() error: %v", err)
	}
	if options.Group != "gpu" {
		t.Errorf("Group = %q", options.Group)
	}
	if _, err := ReadOptions(filepath.Join(t.TempDir(), "absent.jsonc")); err == nil {
		t.Error("ReadOptions() of a missing file succeeded")
	}
}

func TestMergeOverridesNonZero(t *testing.T) {
	base := Options{Title: "file title", Group: "fast", Speed: 2, Niceness: "0"}
	merged := base.Merge(Options{Title: "flag title", Speed: 5})
	if merged.Title != "flag title" || merged.Group != "fast" || merged.Speed != 5 || merged.Niceness != "0" {
		t.Errorf("merged = %+v", merged)
	}
}

func TestRequest(t *testing.T) {
	request, err := Options{FlowID: "flow-1", Group: "n1", GroupType: "daemon"}.Request([]byte("<flow/>"))
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if request.Title != "flow-1" || request.GroupType != "daemon" || string(request.Flow) != "<flow/>" {
		t.Errorf("request = %+v", request)
	}

	request, err = Options{Group: "gpu"}.Request(nil)
	if err != nil || request.GroupType != "group" {
		t.Errorf("default group type = %q, %v", request.GroupType, err)
	}

	if _, err := (Options{}).Request(nil); err == nil {
		t.Error("Request() without a group succeeded")
	}
	if _, err := (Options{Group: "gpu", GroupType: "cluster"}).Request(nil); err == nil {
		t.Error("Request() with a bad group type succeeded")
	}
}
