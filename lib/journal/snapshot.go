// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"fmt"
	"os"
	"time"

	"github.com/gebr-project/gebr/lib/directory"
	"github.com/gebr-project/gebr/lib/jobs"
)

// SnapshotVersion is bumped when Snapshot changes incompatibly.
const SnapshotVersion = 1

// Snapshot is the client's view of one maestro at a point in time.
type Snapshot struct {
	Version int                `cbor:"1,keyasint"`
	Taken   time.Time          `cbor:"2,keyasint"`
	Maestro string             `cbor:"3,keyasint"`
	Home    string             `cbor:"4,keyasint,omitempty"`
	Workers []directory.Worker `cbor:"5,keyasint"`
	Jobs    []jobs.Job         `cbor:"6,keyasint"`
}

// EncodeSnapshot returns the compressed encoding of snapshot.
func EncodeSnapshot(snapshot Snapshot) ([]byte, error) {
	if snapshot.Version == 0 {
		snapshot.Version = SnapshotVersion
	}
	encoded, err := encMode.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return zstdEncoder.EncodeAll(encoded, nil), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	decoded, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return snapshot, fmt.Errorf("decompressing snapshot: %w", err)
	}
	if err := decMode.Unmarshal(decoded, &snapshot); err != nil {
		return snapshot, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return snapshot, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return snapshot, nil
}

// WriteSnapshot writes snapshot to path, replacing it atomically.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	temporary := path + ".tmp"
	if err := os.WriteFile(temporary, data, 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(temporary, path); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}
