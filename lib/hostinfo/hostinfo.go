// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostinfo reads the client host's identity and the same
// resource metrics a daemon reports in its status: CPU model, core
// count, clock and total memory.
//
// Probe never fails. Unreadable files leave fields at their zero
// value, so a container without /proc still gets a hostname.
package hostinfo

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gebr-project/gebr/lib/directory"
	"github.com/gebr-project/gebr/lib/protocol"
)

// Info describes this host.
type Info struct {
	Hostname string
	CPUModel string
	CPUCores int
	CPUClock float64 // MHz, from the first processor
	Memory   string  // MemTotal as the kernel prints it, e.g. "16318504 kB"
}

// Probe reads the running host.
func Probe() Info {
	return probeFrom("/proc", os.Hostname)
}

func probeFrom(procRoot string, hostname func() (string, error)) Info {
	var info Info
	info.Hostname, _ = hostname()
	info.CPUModel, info.CPUCores, info.CPUClock = readCPUInfo(filepath.Join(procRoot, "cpuinfo"))
	info.Memory = readMemTotal(filepath.Join(procRoot, "meminfo"))
	return info
}

// Status renders the host as a directory entry at address, in the
// given state.
func (i Info) Status(address string, state protocol.State) directory.Status {
	return directory.Status{
		Hostname: i.Hostname,
		Address:  address,
		State:    state,
		CPUCores: i.CPUCores,
		CPUClock: i.CPUClock,
		CPUModel: i.CPUModel,
		Memory:   i.Memory,
	}
}

// readCPUInfo takes the model and clock of the first processor and
// counts processor entries.
func readCPUInfo(path string) (model string, cores int, clock float64) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "processor":
			cores++
		case "model name":
			if model == "" {
				model = value
			}
		case "cpu MHz":
			if clock == 0 {
				clock, _ = strconv.ParseFloat(value, 64)
			}
		}
	}
	return model, cores, clock
}

func readMemTotal(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if value, found := strings.CutPrefix(scanner.Text(), "MemTotal:"); found {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
