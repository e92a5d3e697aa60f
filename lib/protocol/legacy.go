// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// MaxArgumentLength bounds the declared argument length of a legacy
// frame. Larger declarations are rejected before any body is buffered.
const MaxArgumentLength = 64 << 20

// maxLengthDigits bounds the decimal length field.
const maxLengthDigits = 10

// Message is one decoded legacy frame. Fields holds the argument split
// into its positional values; the count always matches Kind.
type Message struct {
	Kind     Kind
	Argument []byte
	Fields   []string
}

// ArgumentLength is the declared byte length of the argument blob.
func (m Message) ArgumentLength() int { return len(m.Argument) }

// Field returns field index, or "" when out of range.
func (m Message) Field(index int) string {
	if index < 0 || index >= len(m.Fields) {
		return ""
	}
	return m.Fields[index]
}

// Encode renders a legacy frame. The field count is checked against
// the dictionary so a malformed frame is never put on the wire.
func Encode(kind Kind, fields ...string) ([]byte, error) {
	if err := checkFieldCount(kind, fields); err != nil {
		return nil, err
	}
	return appendFrame(nil, kind.Code(), fields), nil
}

// EncodeReturn renders a RET frame answering kind.
func EncodeReturn(answered Kind, fields ...string) ([]byte, error) {
	return Encode(KindReturn, append([]string{answered.Code()}, fields...)...)
}

func appendFrame(destination []byte, code string, fields []string) []byte {
	argument := appendArgument(nil, fields)
	destination = append(destination, code...)
	destination = append(destination, ' ')
	destination = strconv.AppendInt(destination, int64(len(argument)), 10)
	destination = append(destination, ' ')
	destination = append(destination, argument...)
	return append(destination, '\n')
}

func appendArgument(destination []byte, fields []string) []byte {
	for index, field := range fields {
		if index > 0 {
			destination = append(destination, ' ')
		}
		destination = strconv.AppendInt(destination, int64(len(field)), 10)
		destination = append(destination, '|')
		destination = append(destination, field...)
	}
	return destination
}

func checkFieldCount(kind Kind, fields []string) error {
	if kind == KindInvalid || kind >= kindCount {
		return fmt.Errorf("%w: kind %d", ErrUnknownKind, kind)
	}
	expected := kind.Fields()
	if expected == VariableFields {
		if len(fields) == 0 {
			return fmt.Errorf("%w: %s needs the answered code", ErrFieldCount, kind)
		}
		answered, ok := LookupKind(fields[0])
		if !ok {
			return fmt.Errorf("%w: %s answers %q", ErrUnknownKind, kind, fields[0])
		}
		count, ok := ReturnFields(answered)
		if !ok {
			return fmt.Errorf("%w: %s cannot answer %s", ErrUnknownKind, kind, answered)
		}
		expected = count + 1
	}
	if len(fields) != expected {
		return fmt.Errorf("%w: %s expects %d fields, got %d", ErrFieldCount, kind, expected, len(fields))
	}
	return nil
}

// parseLegacy parses one frame from the head of buffer. It returns
// consumed == 0 when the frame is incomplete.
func parseLegacy(buffer []byte) (Message, int, *ParseError) {
	space := bytes.IndexByte(buffer, ' ')
	if space < 0 {
		if len(buffer) > maxCodeLength {
			return Message{}, 0, malformed(string(buffer[:maxCodeLength]), "code longer than 4 bytes", nil)
		}
		return Message{}, 0, nil
	}
	if space > maxCodeLength {
		return Message{}, 0, malformed(string(buffer[:maxCodeLength]), "code longer than 4 bytes", nil)
	}

	code := string(buffer[:space])
	kind, ok := LookupKind(code)
	if !ok {
		return Message{}, 0, malformed(code, "unknown code", ErrUnknownKind)
	}

	rest := buffer[space+1:]
	lengthEnd := bytes.IndexByte(rest, ' ')
	if lengthEnd < 0 {
		if !isDigits(rest) {
			return Message{}, 0, malformed(code, "non-numeric argument length", nil)
		}
		if len(rest) > maxLengthDigits {
			return Message{}, 0, malformed(code, "argument length field too long", nil)
		}
		return Message{}, 0, nil
	}

	lengthField := rest[:lengthEnd]
	if len(lengthField) == 0 || !isDigits(lengthField) {
		return Message{}, 0, malformed(code, "non-numeric argument length", nil)
	}
	if len(lengthField) > maxLengthDigits {
		return Message{}, 0, malformed(code, "argument length field too long", nil)
	}
	total, err := strconv.Atoi(string(lengthField))
	if err != nil {
		return Message{}, 0, malformed(code, "non-numeric argument length", err)
	}
	if total > MaxArgumentLength {
		return Message{}, 0, malformed(code, fmt.Sprintf("argument length %d exceeds %d", total, MaxArgumentLength), nil)
	}

	headerLength := space + 1 + lengthEnd + 1
	// The trailing line feed must have arrived too.
	if len(buffer) < headerLength+total+1 {
		return Message{}, 0, nil
	}
	if buffer[headerLength+total] != '\n' {
		return Message{}, 0, malformed(code, "argument not terminated by line feed", nil)
	}

	argument := bytes.Clone(buffer[headerLength : headerLength+total])
	fields, reason := splitArgument(argument)
	if reason != "" {
		return Message{}, 0, malformed(code, reason, nil)
	}
	if err := checkFieldCount(kind, fields); err != nil {
		return Message{}, 0, malformed(code, "bad field count", err)
	}

	return Message{Kind: kind, Argument: argument, Fields: fields}, headerLength + total + 1, nil
}

// splitArgument splits LEN|VALUE tokens. A single trailing space after
// the last token is tolerated; older peers emit one.
func splitArgument(argument []byte) ([]string, string) {
	fields := []string{}
	position := 0
	for position < len(argument) {
		if len(fields) > 0 {
			if argument[position] != ' ' {
				return nil, fmt.Sprintf("expected space between fields at argument offset %d", position)
			}
			position++
			if position == len(argument) {
				break
			}
		}

		bar := bytes.IndexByte(argument[position:], '|')
		if bar < 0 {
			return nil, fmt.Sprintf("field without length at argument offset %d", position)
		}
		lengthField := argument[position : position+bar]
		if len(lengthField) == 0 || len(lengthField) > maxLengthDigits || !isDigits(lengthField) {
			return nil, fmt.Sprintf("bad field length %q", lengthField)
		}
		length, err := strconv.Atoi(string(lengthField))
		if err != nil {
			return nil, fmt.Sprintf("bad field length %q", lengthField)
		}

		start := position + bar + 1
		end := start + length
		if end > len(argument) {
			return nil, fmt.Sprintf("field of %d bytes overruns argument", length)
		}
		fields = append(fields, string(argument[start:end]))
		position = end
	}
	return fields, ""
}

func isDigits(data []byte) bool {
	for _, character := range data {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}

func malformed(code, reason string, err error) *ParseError {
	return &ParseError{Code: code, Reason: reason, Err: err}
}
