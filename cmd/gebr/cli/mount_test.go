// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gebr-project/gebr/lib/config"
)

func TestCommandMounter(t *testing.T) {
	directory := t.TempDir()
	log := filepath.Join(directory, "log")
	mounter := &CommandMounter{
		Config: config.MountConfig{
			Command:        "echo mount {address} {port} >> " + log,
			UnmountCommand: "echo unmount {address} >> " + log,
		},
		Logger: slog.New(slog.DiscardHandler),
	}

	if err := mounter.Mount("cluster", 2000); err != nil {
		t.Fatalf("Mount() error: %v", err)
	}
	if err := mounter.Unmount(); err != nil {
		t.Fatalf("Unmount() error: %v", err)
	}
	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatalf("reading command log: %v", err)
	}
	if got := string(data); got != "mount cluster 2000\nunmount cluster\n" {
		t.Errorf("commands ran as %q", got)
	}

	mounter.Config.Command = "exit 3"
	if err := mounter.Mount("cluster", 2000); err == nil || !strings.Contains(err.Error(), "exit 3") {
		t.Errorf("failing Mount() = %v", err)
	}
}

func TestParseYes(t *testing.T) {
	for line, want := range map[string]bool{"y\n": true, " YES ": true, "n": false, "": false, "sure": false} {
		if got := parseYes(line); got != want {
			t.Errorf("parseYes(%q) = %v, want %v", line, got, want)
		}
	}
}
