// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is wrapped by a ParseError whose code is not in the
// dictionary.
var ErrUnknownKind = errors.New("unknown message code")

// ErrFieldCount is wrapped by a ParseError whose argument splits into
// a different number of fields than its kind declares.
var ErrFieldCount = errors.New("field count mismatch")

// ParseError reports malformed input. A Decoder that returns a
// ParseError is poisoned and returns the same error from every later
// Feed: the connection must be dropped.
type ParseError struct {
	// Offset is the position in the connection's byte stream of the
	// frame that failed to parse.
	Offset int64
	// Code is the frame's code or start line, when known.
	Code   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	message := fmt.Sprintf("protocol: parse error at byte %d", e.Offset)
	if e.Code != "" {
		message += fmt.Sprintf(" (%s)", e.Code)
	}
	message += ": " + e.Reason
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *ParseError) Unwrap() error { return e.Err }
