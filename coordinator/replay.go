// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"fmt"
	"time"

	"github.com/gebr-project/gebr/lib/journal"
	"github.com/gebr-project/gebr/lib/protocol"
)

// ReplayJournal feeds a recorded journal through Dispatch and returns
// the number of legacy messages applied. Each connection generation
// gets a fresh decoder, as the live session does. A generation whose
// bytes fail to parse is abandoned at the failure, and replay goes on
// with the next one.
func (c *Coordinator) ReplayJournal(path string) (int, error) {
	var (
		applied    int
		generation uint64
		decoder    *protocol.Decoder
		poisoned   bool
	)
	err := journal.Read(path, func(record journal.Record) error {
		if decoder == nil || record.Generation != generation {
			generation, decoder, poisoned = record.Generation, protocol.NewDecoder(), false
		}
		if poisoned {
			return nil
		}
		frames, err := decoder.Feed(record.Data)
		for _, frame := range frames {
			if frame.IsHTTP() {
				continue
			}
			c.Dispatch(frame.Message)
			applied++
		}
		if err != nil {
			c.logger.Warn("journal generation stops at a malformed frame",
				"generation", generation, "sequence", record.Sequence, "error", err)
			poisoned = true
		}
		return nil
	})
	if err != nil {
		return applied, fmt.Errorf("replaying %s: %w", path, err)
	}
	return applied, nil
}

// Snapshot captures the directory and registry.
func (c *Coordinator) Snapshot(taken time.Time) journal.Snapshot {
	snapshot := journal.Snapshot{
		Version: journal.SnapshotVersion,
		Taken:   taken.UTC(),
		Home:    c.home,
		Workers: c.workers.List(nil, false),
		Jobs:    c.registry.Jobs(),
	}
	if c.session != nil {
		snapshot.Maestro = c.session.Address()
	}
	return snapshot
}
