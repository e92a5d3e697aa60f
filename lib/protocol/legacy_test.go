// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"slices"
	"testing"
)

func TestEncodeLegacyFrame(t *testing.T) {
	encoded, err := Encode(KindStatus, "42", "running", "")
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	want := "STA 17 2|42 7|running 0|\n"
	if string(encoded) != want {
		t.Errorf("Encode() = %q, want %q", encoded, want)
	}
}

func TestEncodeRejectsWrongFieldCount(t *testing.T) {
	_, err := Encode(KindStatus, "42")
	if !errors.Is(err, ErrFieldCount) {
		t.Fatalf("Encode() error = %v, want ErrFieldCount", err)
	}

	_, err = Encode(KindInvalid)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Encode(KindInvalid) error = %v, want ErrUnknownKind", err)
	}
}

func TestEncodeReturn(t *testing.T) {
	encoded, err := EncodeReturn(KindLogin, "node1", "6011", "nfs-a")
	if err != nil {
		t.Fatalf("EncodeReturn() error: %v", err)
	}

	frames, err := NewDecoder().Feed(encoded)
	if err != nil {
		t.Fatalf("Feed() error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	message := frames[0].Message
	if message.Kind != KindReturn {
		t.Errorf("Kind = %v, want RET", message.Kind)
	}
	want := []string{"INI", "node1", "6011", "nfs-a"}
	if !slices.Equal(message.Fields, want) {
		t.Errorf("Fields = %q, want %q", message.Fields, want)
	}

	if _, err := EncodeReturn(KindHome, "x"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("EncodeReturn(HOME) error = %v, want ErrUnknownKind", err)
	}
}

func TestDecodeFieldsContainingSeparators(t *testing.T) {
	text := "a b|c\nd"
	encoded, err := Encode(KindOutput, "7", "1", text)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	frames, err := NewDecoder().Feed(encoded)
	if err != nil {
		t.Fatalf("Feed() error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if got := frames[0].Message.Field(2); got != text {
		t.Errorf("Field(2) = %q, want %q", got, text)
	}
	if got := frames[0].Message.ArgumentLength(); got != len(encoded)-len("OUT 17 ")-1 {
		t.Errorf("ArgumentLength() = %d", got)
	}
}

func TestDecodeTruncatedArgumentWaits(t *testing.T) {
	decoder := NewDecoder()

	for _, chunk := range []string{"OUT 13 1|7 1|1 3|", "foo"} {
		frames, err := decoder.Feed([]byte(chunk))
		if err != nil {
			t.Fatalf("Feed(%q) error: %v", chunk, err)
		}
		if len(frames) != 0 {
			t.Fatalf("Feed(%q) produced %d frames before the line feed arrived", chunk, len(frames))
		}
	}

	frames, err := decoder.Feed([]byte("\n"))
	if err != nil {
		t.Fatalf("Feed() error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	want := []string{"7", "1", "foo"}
	if !slices.Equal(frames[0].Message.Fields, want) {
		t.Errorf("Fields = %q, want %q", frames[0].Message.Fields, want)
	}
	if decoder.Buffered() != 0 {
		t.Errorf("Buffered() = %d after a complete frame", decoder.Buffered())
	}
}

func TestDecodeTrailingSpaceTolerated(t *testing.T) {
	frames, err := NewDecoder().Feed([]byte("HOME 4 1|a \n"))
	if err != nil {
		t.Fatalf("Feed() error: %v", err)
	}
	if len(frames) != 1 || !slices.Equal(frames[0].Message.Fields, []string{"a"}) {
		t.Fatalf("frames = %+v, want one HOME with field a", frames)
	}
}

func TestDecodeMalformedFrames(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target error
	}{
		{name: "unknown code", input: "XYZ 0 \n", target: ErrUnknownKind},
		{name: "non-numeric length", input: "STA 1x 2|42\n"},
		{name: "empty length", input: "STA  2|42\n"},
		{name: "field count mismatch", input: "STA 4 2|42\n", target: ErrFieldCount},
		{name: "missing line feed", input: "HOME 3 1|aX\n"},
		{name: "field overruns argument", input: "HOME 3 9|a\n"},
		{name: "field without length", input: "HOME 3 abc\n"},
		{name: "code too long", input: "ABCDEFG 0 \n"},
		{name: "RET of unknown kind", input: "RET 5 3|ZZZ\n", target: ErrUnknownKind},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			decoder := NewDecoder()
			frames, err := decoder.Feed([]byte(test.input))
			if len(frames) != 0 {
				t.Errorf("got %d frames from malformed input", len(frames))
			}
			var parseError *ParseError
			if !errors.As(err, &parseError) {
				t.Fatalf("Feed() error = %v, want *ParseError", err)
			}
			if test.target != nil && !errors.Is(err, test.target) {
				t.Errorf("Feed() error = %v, want wrapping %v", err, test.target)
			}

			// The decoder stays poisoned.
			_, again := decoder.Feed([]byte("HOME 3 1|a\n"))
			if again != err {
				t.Errorf("second Feed() error = %v, want the original %v", again, err)
			}
		})
	}
}

func TestDecodeReportsFramesBeforeError(t *testing.T) {
	frames, err := NewDecoder().Feed([]byte("HOME 3 1|a\nXYZ 0 \n"))
	if err == nil {
		t.Fatal("Feed() succeeded on a stream with an unknown code")
	}
	if len(frames) != 1 || frames[0].Message.Kind != KindHome {
		t.Fatalf("frames = %+v, want the HOME frame preceding the error", frames)
	}
	var parseError *ParseError
	if errors.As(err, &parseError) && parseError.Offset != int64(len("HOME 3 1|a\n")) {
		t.Errorf("Offset = %d, want %d", parseError.Offset, len("HOME 3 1|a\n"))
	}
}

func TestLookupKind(t *testing.T) {
	for kind := KindInvalid + 1; kind < kindCount; kind++ {
		found, ok := LookupKind(kind.Code())
		if !ok || found != kind {
			t.Errorf("LookupKind(%q) = %v, %v", kind.Code(), found, ok)
		}
	}
	if _, ok := LookupKind("NOPE"); ok {
		t.Error("LookupKind(NOPE) succeeded")
	}
	if KindJob.Fields() != 21 || KindServerStatusAll.Fields() != 8 || KindReturn.Fields() != VariableFields {
		t.Error("dictionary field counts changed")
	}
}
