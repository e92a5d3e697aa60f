// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"os/exec"
	"testing"
	"time"
)

func TestTerminateGroupKillsChildren(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "sleep 60 & wait")
	if err := StartGroup(cmd); err != nil {
		t.Fatalf("StartGroup() error: %v", err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if err := TerminateGroup(cmd); err != nil {
		t.Fatalf("TerminateGroup() error: %v", err)
	}
	select {
	case <-exited:
	case <-time.After(10 * time.Second):
		t.Fatal("process group still running after SIGTERM")
	}

	if err := TerminateGroup(cmd); err != nil {
		t.Errorf("TerminateGroup() on an exited group = %v, want nil", err)
	}
	if err := TerminateGroup(nil); err != nil {
		t.Errorf("TerminateGroup(nil) = %v", err)
	}
}
