// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"reflect"
	"slices"
	"testing"

	"pgregory.net/rapid"
)

// fixedKinds are the kinds a generated stream draws from; RET is
// excluded because its shape depends on its first field.
var fixedKinds = []Kind{
	KindJob, KindStatus, KindOutput, KindCommand, KindIssues, KindJobClose,
	KindError, KindLogin, KindServerStatus, KindServerStatusAll,
	KindServerRemove, KindAutoconnect, KindGroups, KindMPI, KindPassword,
	KindQuestion, KindConfirm, KindPath, KindHome,
}

type generatedMessage struct {
	kind   Kind
	fields []string
}

func drawMessage(t *rapid.T, label string) generatedMessage {
	kind := rapid.SampledFrom(fixedKinds).Draw(t, label+"-kind")
	fields := make([]string, kind.Fields())
	for index := range fields {
		fields[index] = rapid.String().Draw(t, label+"-field")
	}
	return generatedMessage{kind: kind, fields: fields}
}

// feedChunks feeds stream to a fresh decoder split by sizes, cycling
// through sizes until the stream is exhausted.
func feedChunks(t *rapid.T, stream []byte, sizes []int) []Frame {
	decoder := NewDecoder()
	var frames []Frame
	for position, turn := 0, 0; position < len(stream); turn++ {
		end := min(position+sizes[turn%len(sizes)], len(stream))
		decoded, err := decoder.Feed(stream[position:end])
		if err != nil {
			t.Fatalf("Feed() error at byte %d: %v", position, err)
		}
		frames = append(frames, decoded...)
		position = end
	}
	if decoder.Buffered() != 0 {
		t.Fatalf("%d bytes left buffered after a complete stream", decoder.Buffered())
	}
	return frames
}

func TestLegacyChunkingIndependence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		messages := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) generatedMessage {
			return drawMessage(t, "message")
		}), 1, 8).Draw(t, "messages")

		var stream []byte
		for _, message := range messages {
			encoded, err := Encode(message.kind, message.fields...)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			stream = append(stream, encoded...)
		}

		whole, err := NewDecoder().Feed(stream)
		if err != nil {
			t.Fatalf("single Feed() error: %v", err)
		}
		sizes := rapid.SliceOfN(rapid.IntRange(1, 48), 1, 16).Draw(t, "chunk-sizes")
		chunked := feedChunks(t, stream, sizes)

		if !reflect.DeepEqual(whole, chunked) {
			t.Fatalf("chunked decode differs:\n whole   %+v\n chunked %+v", whole, chunked)
		}
		if len(whole) != len(messages) {
			t.Fatalf("decoded %d frames from %d messages", len(whole), len(messages))
		}
		for index, message := range messages {
			if whole[index].Message.Kind != message.kind || !slices.Equal(whole[index].Message.Fields, message.fields) {
				t.Fatalf("frame %d = %v %q, want %v %q", index,
					whole[index].Message.Kind, whole[index].Message.Fields, message.kind, message.fields)
			}
		}
	})
}

func TestLegacyPrefixNeverYields(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		message := drawMessage(t, "message")
		encoded, err := Encode(message.kind, message.fields...)
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		cut := rapid.IntRange(0, len(encoded)-1).Draw(t, "cut")

		frames, err := NewDecoder().Feed(encoded[:cut])
		if err != nil {
			t.Fatalf("Feed() of a %d-byte prefix error: %v", cut, err)
		}
		if len(frames) != 0 {
			t.Fatalf("a %d-byte prefix of a %d-byte frame produced %d frames", cut, len(encoded), len(frames))
		}
	})
}

func newResponse(status int, body []byte) *HTTPMessage {
	return &HTTPMessage{Status: status, Headers: map[string]string{}, Body: body}
}

func TestHTTPChunkingIndependence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 6).Draw(t, "count")
		var stream []byte
		for range count {
			var message *HTTPMessage
			if rapid.Bool().Draw(t, "response") {
				message = newResponse(rapid.IntRange(100, 599).Draw(t, "status"), nil)
			} else {
				method := rapid.SampledFrom([]string{MethodGet, MethodPut, MethodPost, MethodDelete}).Draw(t, "method")
				url := "/" + rapid.StringMatching(`[a-z\-]{1,12}\?[a-z]=[a-z0-9%]{0,8}`).Draw(t, "url")
				message = NewRequest(method, url, []byte(rapid.String().Draw(t, "body")))
			}
			stream = append(stream, message.Encode()...)
		}

		whole, err := NewDecoder().Feed(stream)
		if err != nil {
			t.Fatalf("single Feed() error: %v", err)
		}
		if len(whole) != count {
			t.Fatalf("decoded %d frames, want %d", len(whole), count)
		}
		sizes := rapid.SliceOfN(rapid.IntRange(1, 32), 1, 16).Draw(t, "chunk-sizes")
		if chunked := feedChunks(t, stream, sizes); !reflect.DeepEqual(whole, chunked) {
			t.Fatalf("chunked decode differs:\n whole   %+v\n chunked %+v", whole, chunked)
		}
	})
}

func TestParseState(t *testing.T) {
	tests := []struct {
		name string
		want State
	}{
		{"logged_in", StateLoggedIn},
		{"connected", StateLoggedIn},
		{"DISCONNECTED", StateDisconnected},
		{"run", StateLaunching},
		{"open_tunnel", StateOpeningTunnel},
		{"logging_in", StateConnected},
		{"bogus", StateUnknown},
	}
	for _, test := range tests {
		if got := ParseState(test.name); got != test.want {
			t.Errorf("ParseState(%q) = %v, want %v", test.name, got, test.want)
		}
	}
	if StateOpeningTunnel.String() != "opening_tunnel" {
		t.Errorf("String() = %q", StateOpeningTunnel.String())
	}
}
