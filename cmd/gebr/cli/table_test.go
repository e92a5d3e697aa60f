// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestTableAlignsColumns(t *testing.T) {
	table := Table{Headers: []string{"ADDRESS", "STATE"}}
	table.AddRow("127.0.0.1", "logged_in")
	table.AddRow("n1", "disconnected")

	var output bytes.Buffer
	if err := table.Render(&output); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(output.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("rendered %d lines, want 3:\n%s", len(lines), output.String())
	}
	if lines[1] != "127.0.0.1  logged_in" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "n1         disconnected" {
		t.Errorf("row 2 = %q", lines[2])
	}
	if !strings.HasPrefix(lines[0], "ADDRESS    STATE") {
		t.Errorf("header = %q", lines[0])
	}
}
