// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BinaryPlaceholder is replaced by the maestro binary name in launch
// command templates.
const BinaryPlaceholder = "{binary}"

// Config is the client configuration.
type Config struct {
	Maestro MaestroConfig `yaml:"maestro"`
	Tunnel  TunnelConfig  `yaml:"tunnel"`
	SSH     SSHConfig     `yaml:"ssh"`
	Mount   MountConfig   `yaml:"mount"`
	Journal JournalConfig `yaml:"journal"`
}

// MaestroConfig describes how to reach and start the maestro.
type MaestroConfig struct {
	// Address is the host the maestro runs on. Loopback addresses
	// start it as a local child process.
	Address string `yaml:"address"`

	// Binary is the maestro executable name.
	Binary string `yaml:"binary"`

	// RemoteCommand is run through SSH on the maestro host. The
	// maestro prints its port on standard output; the default
	// template discards everything else the login shell writes.
	RemoteCommand string `yaml:"remote_command"`

	// LocalCommand is run through /bin/sh for loopback addresses.
	LocalCommand string `yaml:"local_command"`

	// ProtocolVersion is sent with the login message.
	ProtocolVersion string `yaml:"protocol_version"`
}

// TunnelConfig configures local port forwarding.
type TunnelConfig struct {
	// BasePort is the first local port tried for the maestro tunnel.
	BasePort int `yaml:"base_port"`

	// PollInterval is how often an opening tunnel is probed.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SSHConfig configures authentication to remote maestros.
type SSHConfig struct {
	User             string   `yaml:"user"`
	Port             int      `yaml:"port"`
	KnownHosts       string   `yaml:"known_hosts"`
	IdentityFiles    []string `yaml:"identity_files"`
	AgentSocket      string   `yaml:"agent_socket"`
	PasswordAttempts int      `yaml:"password_attempts"`
}

// MountConfig configures the filesystem mount of the maestro host,
// made while at least one worker is logged in.
type MountConfig struct {
	BasePort int `yaml:"base_port"`

	// Command and UnmountCommand run through /bin/sh with {address}
	// and {port} substituted. An empty Command disables mounting.
	Command        string `yaml:"command"`
	UnmountCommand string `yaml:"unmount_command"`
}

// Mount placeholders.
const (
	AddressPlaceholder = "{address}"
	PortPlaceholder    = "{port}"
)

// Render substitutes address and port into a mount template.
func (m *MountConfig) Render(template, address string, port int) string {
	return strings.NewReplacer(
		AddressPlaceholder, address,
		PortPlaceholder, strconv.Itoa(port),
	).Replace(template)
}

// JournalConfig configures frame recording. An empty Path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	user := os.Getenv("USER")
	return &Config{
		Maestro: MaestroConfig{
			Address:         "127.0.0.1",
			Binary:          "gebrm",
			RemoteCommand:   "bash -l -c '{binary} >&3' 3>&1 >/dev/null 2>&1",
			LocalCommand:    "{binary} 2>/dev/null",
			ProtocolVersion: "1.0.6",
		},
		Tunnel: TunnelConfig{
			BasePort:     2125,
			PollInterval: 200 * time.Millisecond,
		},
		SSH: SSHConfig{
			User:       user,
			Port:       22,
			KnownHosts: "${HOME}/.ssh/known_hosts",
			IdentityFiles: []string{
				"${HOME}/.ssh/id_ed25519",
				"${HOME}/.ssh/id_ecdsa",
				"${HOME}/.ssh/id_rsa",
			},
			AgentSocket:      "${SSH_AUTH_SOCK}",
			PasswordAttempts: 2,
		},
		Mount: MountConfig{
			BasePort: 2000,
		},
	}
}

// Load loads the file named by GEBR_CONFIG, or the defaults when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv("GEBR_CONFIG")
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, merged over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration merged over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":          os.Getenv("HOME"),
		"SSH_AUTH_SOCK": os.Getenv("SSH_AUTH_SOCK"),
	}
	c.SSH.KnownHosts = expandVars(c.SSH.KnownHosts, vars)
	c.SSH.AgentSocket = expandVars(c.SSH.AgentSocket, vars)
	for index, path := range c.SSH.IdentityFiles {
		c.SSH.IdentityFiles[index] = expandVars(path, vars)
	}
	c.Journal.Path = expandVars(c.Journal.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, preferring vars over
// the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Maestro.Binary == "" {
		errs = append(errs, errors.New("maestro.binary is required"))
	}
	if c.Maestro.ProtocolVersion == "" {
		errs = append(errs, errors.New("maestro.protocol_version is required"))
	}
	for name, template := range map[string]string{
		"maestro.remote_command": c.Maestro.RemoteCommand,
		"maestro.local_command":  c.Maestro.LocalCommand,
	} {
		if !strings.Contains(template, BinaryPlaceholder) {
			errs = append(errs, fmt.Errorf("%s must contain %s", name, BinaryPlaceholder))
		}
	}
	for name, port := range map[string]int{
		"tunnel.base_port": c.Tunnel.BasePort,
		"ssh.port":         c.SSH.Port,
		"mount.base_port":  c.Mount.BasePort,
	} {
		if port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s must be between 1 and 65535, got %d", name, port))
		}
	}
	if c.Tunnel.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("tunnel.poll_interval must be positive, got %v", c.Tunnel.PollInterval))
	}
	if c.Mount.Command != "" && c.Mount.UnmountCommand == "" {
		errs = append(errs, errors.New("mount.unmount_command is required when mount.command is set"))
	}
	if c.SSH.PasswordAttempts < 1 {
		errs = append(errs, fmt.Errorf("ssh.password_attempts must be at least 1, got %d", c.SSH.PasswordAttempts))
	}

	return errors.Join(errs...)
}

// Command renders a launch template for the configured binary.
func (c *MaestroConfig) Command(template string) string {
	return strings.ReplaceAll(template, BinaryPlaceholder, c.Binary)
}
