// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Tunnel.BasePort != 2125 {
		t.Errorf("tunnel.base_port = %d, want 2125", cfg.Tunnel.BasePort)
	}
	if cfg.Mount.BasePort != 2000 {
		t.Errorf("mount.base_port = %d, want 2000", cfg.Mount.BasePort)
	}
	if cfg.Tunnel.PollInterval != 200*time.Millisecond {
		t.Errorf("tunnel.poll_interval = %v, want 200ms", cfg.Tunnel.PollInterval)
	}
	if cfg.SSH.PasswordAttempts != 2 {
		t.Errorf("ssh.password_attempts = %d, want 2", cfg.SSH.PasswordAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("GEBR_CONFIG", "")
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SSH.KnownHosts != "/home/tester/.ssh/known_hosts" {
		t.Errorf("ssh.known_hosts = %q, want expanded default", cfg.SSH.KnownHosts)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path := filepath.Join(t.TempDir(), "gebr.yaml")
	content := `
maestro:
  address: cluster.example.org
  binary: /opt/gebr/bin/gebrm
tunnel:
  base_port: 3000
  poll_interval: 50ms
ssh:
  user: alice
  identity_files:
    - ${HOME}/keys/cluster
journal:
  path: ${GEBR_STATE:-/var/tmp}/journal.zst
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("GEBR_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Maestro.Address != "cluster.example.org" || cfg.Maestro.Binary != "/opt/gebr/bin/gebrm" {
		t.Errorf("maestro = %+v", cfg.Maestro)
	}
	if cfg.Tunnel.BasePort != 3000 || cfg.Tunnel.PollInterval != 50*time.Millisecond {
		t.Errorf("tunnel = %+v", cfg.Tunnel)
	}
	if cfg.Mount.BasePort != 2000 {
		t.Errorf("mount.base_port = %d, want the default kept", cfg.Mount.BasePort)
	}
	if cfg.SSH.User != "alice" || cfg.SSH.Port != 22 {
		t.Errorf("ssh = %+v", cfg.SSH)
	}
	if !slices.Equal(cfg.SSH.IdentityFiles, []string{"/home/tester/keys/cluster"}) {
		t.Errorf("ssh.identity_files = %q", cfg.SSH.IdentityFiles)
	}
	if cfg.Journal.Path != "/var/tmp/journal.zst" {
		t.Errorf("journal.path = %q", cfg.Journal.Path)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() of a missing file succeeded")
	}
	if _, err := Parse([]byte("tunnel: [not, a, map")); err == nil {
		t.Error("Parse() of malformed YAML succeeded")
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input string
		vars  map[string]string
		want  string
	}{
		{"${HOME}/.ssh", map[string]string{"HOME": "/home/user"}, "/home/user/.ssh"},
		{"${GEBR_TEST_MISSING:-fallback}", map[string]string{}, "fallback"},
		{"${PRESENT:-fallback}", map[string]string{"PRESENT": "value"}, "value"},
		{"${A}/${B}", map[string]string{"A": "first", "B": "second"}, "first/second"},
		{"plain", map[string]string{}, "plain"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, test.vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"no binary", func(c *Config) { c.Maestro.Binary = "" }, "maestro.binary"},
		{"template without binary", func(c *Config) { c.Maestro.RemoteCommand = "gebrm" }, "maestro.remote_command"},
		{"port out of range", func(c *Config) { c.Tunnel.BasePort = 70000 }, "tunnel.base_port"},
		{"zero poll interval", func(c *Config) { c.Tunnel.PollInterval = 0 }, "tunnel.poll_interval"},
		{"no password attempts", func(c *Config) { c.SSH.PasswordAttempts = 0 }, "ssh.password_attempts"},
		{"mount without unmount", func(c *Config) { c.Mount.Command = "sshfs {address}:/ /mnt" }, "mount.unmount_command"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.modify(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, test.wantErr)
			}
		})
	}
}

func TestCommand(t *testing.T) {
	maestro := MaestroConfig{Binary: "gebrm"}
	if got := maestro.Command("bash -l -c '{binary} >&3'"); got != "bash -l -c 'gebrm >&3'" {
		t.Errorf("Command() = %q", got)
	}
}

func TestMountRender(t *testing.T) {
	mount := MountConfig{BasePort: 2000}
	got := mount.Render("sshfs -p {port} {address}:/ /mnt/{address}", "cluster", mount.BasePort)
	if got != "sshfs -p 2000 cluster:/ /mnt/cluster" {
		t.Errorf("Render() = %q", got)
	}
}
