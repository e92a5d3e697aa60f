// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records what a maestro connection received, and
// saves point-in-time snapshots of the client's state.
//
// A journal is a zstd stream of CBOR records, one per socket read.
// Records hold the raw bytes rather than decoded frames: feeding them
// back through a protocol.Decoder reproduces the exact frame sequence
// regardless of how the reads were split.
package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Record is one socket read. Generation identifies the connection the
// bytes arrived on; each new connection restarts framing detection.
type Record struct {
	Sequence   uint64    `cbor:"1,keyasint"`
	Time       time.Time `cbor:"2,keyasint"`
	Generation uint64    `cbor:"3,keyasint"`
	Data       []byte    `cbor:"4,keyasint"`
}

// Writer appends records to a journal file.
type Writer struct {
	file     *os.File
	zstd     *zstd.Encoder
	cbor     *cbor.Encoder
	sequence uint64
}

// Create truncates or creates the journal at path.
func Create(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating journal: %w", err)
	}
	return NewWriter(file)
}

// NewWriter starts a journal on file, which the Writer closes.
func NewWriter(file *os.File) (*Writer, error) {
	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("starting journal compression: %w", err)
	}
	return &Writer{file: file, zstd: encoder, cbor: encMode.NewEncoder(encoder)}, nil
}

// Append records data received at the given time on the given
// connection generation. The data is copied.
func (w *Writer) Append(at time.Time, generation uint64, data []byte) error {
	w.sequence++
	record := Record{
		Sequence:   w.sequence,
		Time:       at.UTC(),
		Generation: generation,
		Data:       append([]byte(nil), data...),
	}
	if err := w.cbor.Encode(record); err != nil {
		return fmt.Errorf("writing journal record %d: %w", w.sequence, err)
	}
	return nil
}

// Flush makes every appended record readable by a concurrent reader
// of the file.
func (w *Writer) Flush() error {
	return w.zstd.Flush()
}

// Close finishes the zstd stream and closes the file.
func (w *Writer) Close() error {
	return errors.Join(w.zstd.Close(), w.file.Close())
}

// Read calls fn for every record in the journal at path, in order. A
// journal cut off mid-record, as after a crash, ends at the last
// complete record.
func Read(path string, fn func(Record) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer file.Close()
	return ReadFrom(file, fn)
}

// ReadFrom is Read over an arbitrary stream.
func ReadFrom(reader io.Reader, fn func(Record) error) error {
	decompressor, err := zstd.NewReader(reader)
	if err != nil {
		return fmt.Errorf("opening journal stream: %w", err)
	}
	defer decompressor.Close()

	decoder := decMode.NewDecoder(decompressor)
	for {
		var record Record
		err := decoder.Decode(&record)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading journal record: %w", err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}
