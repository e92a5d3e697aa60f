// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package worker

import "testing"

func TestParseOnOff(t *testing.T) {
	tests := map[string]bool{"on": true, "off": false, "true": true, "0": false}
	for value, want := range tests {
		got, err := parseOnOff(value)
		if err != nil || got != want {
			t.Errorf("parseOnOff(%q) = %v, %v; want %v", value, got, err, want)
		}
	}
	if _, err := parseOnOff("maybe"); err == nil {
		t.Error("parseOnOff(maybe) succeeded")
	}
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range Command().Subcommands {
		if sub.Run == nil || sub.Summary == "" {
			t.Errorf("worker %s: missing Run or Summary", sub.Name)
		}
		names[sub.Name] = true
	}
	for _, want := range []string{"add", "remove", "disconnect", "stop", "tag", "untag", "autoconnect"} {
		if !names[want] {
			t.Errorf("worker %s is missing", want)
		}
	}
}
