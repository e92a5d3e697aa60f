// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "bytes"

// Framing is the framing a connection settled on.
type Framing uint8

const (
	// FramingUnknown means no decisive bytes have arrived yet.
	FramingUnknown Framing = iota
	FramingLegacy
	FramingHTTP
)

func (f Framing) String() string {
	switch f {
	case FramingLegacy:
		return "legacy"
	case FramingHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Frame is one decoded unit: a legacy Message, or an HTTP message when
// HTTP is non-nil.
type Frame struct {
	Message Message
	HTTP    *HTTPMessage
}

// IsHTTP reports whether the frame came from the HTTP-like framing.
func (f Frame) IsHTTP() bool { return f.HTTP != nil }

// Decoder turns one connection's byte stream into frames. It is not
// safe for concurrent use; a connection has exactly one decoder, fed
// from the goroutine that owns the connection's state.
type Decoder struct {
	framing Framing
	buffer  []byte
	offset  int64
	err     *ParseError
}

// NewDecoder returns a decoder that settles its framing from the first
// bytes it is fed.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Framing returns the framing the decoder settled on.
func (d *Decoder) Framing() Framing { return d.framing }

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int { return len(d.buffer) }

// Feed appends data to the stream and returns every frame completed by
// it, in stream order. On malformed input it returns the frames that
// precede the bad one together with a *ParseError; the decoder is then
// poisoned and every later call returns the same error.
func (d *Decoder) Feed(data []byte) ([]Frame, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.buffer = append(d.buffer, data...)

	var frames []Frame
	consumedTotal := 0
	for consumedTotal < len(d.buffer) {
		pending := d.buffer[consumedTotal:]
		if d.framing == FramingUnknown {
			framing, decided := detectFraming(pending)
			if !decided {
				break
			}
			d.framing = framing
		}

		var (
			frame    Frame
			consumed int
			failure  *ParseError
		)
		switch d.framing {
		case FramingLegacy:
			frame.Message, consumed, failure = parseLegacy(pending)
		case FramingHTTP:
			frame.HTTP, consumed, failure = parseHTTP(pending)
		}
		if failure != nil {
			failure.Offset = d.offset + int64(consumedTotal)
			d.err = failure
			d.buffer = nil
			return frames, failure
		}
		if consumed == 0 {
			break
		}
		frames = append(frames, frame)
		consumedTotal += consumed
	}

	d.offset += int64(consumedTotal)
	if consumedTotal > 0 {
		d.buffer = append([]byte(nil), d.buffer[consumedTotal:]...)
	}
	return frames, nil
}

// detectFraming decides the framing from the first bytes of a stream.
// It waits while the bytes are still a prefix of some HTTP start.
func detectFraming(data []byte) (Framing, bool) {
	undecided := false
	for _, prefix := range httpPrefixes {
		if bytes.HasPrefix(data, []byte(prefix)) {
			return FramingHTTP, true
		}
		if len(data) < len(prefix) && bytes.HasPrefix([]byte(prefix), data) {
			undecided = true
		}
	}
	if undecided {
		return FramingUnknown, false
	}
	return FramingLegacy, true
}
