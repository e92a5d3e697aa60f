// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/gebr-project/gebr/lib/protocol"
)

func addresses(workers []Worker) []string {
	var result []string
	for _, worker := range workers {
		result = append(result, worker.Address)
	}
	return result
}

func TestUpsertCreatesThenUpdatesInPlace(t *testing.T) {
	directory := New()

	previous, created := directory.Upsert(Status{Address: "10.0.0.5", Hostname: "n5", State: protocol.StateConnecting, CPUCores: 4})
	if !created || previous != protocol.StateUnknown {
		t.Fatalf("first Upsert() = %v, %v; want unknown, true", previous, created)
	}
	directory.SetTags("10.0.0.5", []string{"fast"})

	previous, created = directory.Upsert(Status{Address: "10.0.0.5", Hostname: "n5", State: protocol.StateLoggedIn, CPUCores: 8})
	if created || previous != protocol.StateConnecting {
		t.Fatalf("second Upsert() = %v, %v; want connecting, false", previous, created)
	}

	worker, ok := directory.Get("10.0.0.5")
	if !ok {
		t.Fatal("Get() did not find the worker")
	}
	if worker.CPUCores != 8 || worker.State != protocol.StateLoggedIn {
		t.Errorf("worker = %+v, want 8 cores logged in", worker)
	}
	if !worker.HasTag("fast") {
		t.Error("status update dropped the worker's tags")
	}
	if directory.Len() != 1 {
		t.Errorf("Len() = %d, want 1", directory.Len())
	}
}

func TestLoginClearsLastError(t *testing.T) {
	directory := New()
	directory.Upsert(Status{Address: "n1", State: protocol.StateDisconnected})
	directory.SetError("n1", Error{Kind: ErrorXauth, Message: "no cookie"})

	worker, _ := directory.Get("n1")
	if worker.LastError == nil || worker.LastError.Kind != ErrorXauth {
		t.Fatalf("LastError = %+v, want xauth failure", worker.LastError)
	}

	directory.Upsert(Status{Address: "n1", State: protocol.StateLoggedIn})
	worker, _ = directory.Get("n1")
	if worker.LastError != nil {
		t.Errorf("LastError = %+v after login, want nil", worker.LastError)
	}
}

func TestListFiltersByGroup(t *testing.T) {
	directory := New()
	for _, address := range []string{"a", "b", "c"} {
		directory.Upsert(Status{Address: address})
	}
	directory.SetTags("a", []string{"x", "y"})
	directory.SetTags("b", []string{"y", "z"})

	tests := []struct {
		name       string
		groups     []string
		autoChoose bool
		want       []string
	}{
		{"all", nil, false, []string{"a", "b", "c"}},
		{"all with auto-choose", nil, true, []string{"", "a", "b", "c"}},
		{"single tag", []string{"x"}, false, []string{"a"}},
		{"shared tag", []string{"y"}, true, []string{"", "a", "b"}},
		{"any of several", []string{"x", "z"}, false, []string{"a", "b"}},
		{"no match", []string{"gpu"}, false, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := addresses(directory.List(test.groups, test.autoChoose))
			if !slices.Equal(got, test.want) {
				t.Errorf("List(%v, %v) = %q, want %q", test.groups, test.autoChoose, got, test.want)
			}
		})
	}
}

func TestListReturnsCopies(t *testing.T) {
	directory := New()
	directory.Upsert(Status{Address: "a"})
	directory.SetTags("a", []string{"x"})

	listed := directory.List(nil, false)
	listed[0].Tags[0] = "mutated"

	worker, _ := directory.Get("a")
	if worker.Tags[0] != "x" {
		t.Errorf("mutating a listed copy changed the directory: %q", worker.Tags)
	}
}

func TestAllTagsUnion(t *testing.T) {
	directory := New()
	directory.Upsert(Status{Address: "A"})
	directory.Upsert(Status{Address: "B"})
	directory.SetTags("A", []string{"x", "y"})
	directory.SetTags("B", []string{"y", "z"})

	if got := directory.AllTags(); !slices.Equal(got, []string{"x", "y", "z"}) {
		t.Errorf("AllTags() = %q, want [x y z]", got)
	}
}

func TestAllTagsIndependentOfInsertionOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tagGenerator := rapid.SliceOfN(rapid.SampledFrom([]string{"x", "y", "z", "gpu", "mpi"}), 0, 4)
		tagSets := rapid.SliceOfN(tagGenerator, 1, 6).Draw(t, "tag-sets")
		permutation := rapid.Permutation(indexes(len(tagSets))).Draw(t, "order")

		forward := New()
		for index, tags := range tagSets {
			address := string(rune('a' + index))
			forward.Upsert(Status{Address: address})
			forward.SetTags(address, tags)
		}
		shuffled := New()
		for _, index := range permutation {
			address := string(rune('a' + index))
			shuffled.Upsert(Status{Address: address})
			shuffled.SetTags(address, tagSets[index])
		}

		if !slices.Equal(forward.AllTags(), shuffled.AllTags()) {
			t.Fatalf("AllTags() depends on insertion order: %q vs %q", forward.AllTags(), shuffled.AllTags())
		}
	})
}

func indexes(count int) []int {
	result := make([]int, count)
	for index := range result {
		result[index] = index
	}
	return result
}

func TestTagMutation(t *testing.T) {
	directory := New()
	directory.Upsert(Status{Address: "a"})

	if !directory.AddTag("a", "x") {
		t.Error("AddTag() of a new tag reported no change")
	}
	if directory.AddTag("a", "x") {
		t.Error("AddTag() of an existing tag reported a change")
	}
	if directory.AddTag("missing", "x") {
		t.Error("AddTag() on an unknown worker reported a change")
	}
	if !directory.RemoveTag("a", "x") || directory.RemoveTag("a", "x") {
		t.Error("RemoveTag() did not report exactly one change")
	}
	directory.SetTags("a", []string{"p", "", "p", "q"})
	worker, _ := directory.Get("a")
	if !slices.Equal(worker.Tags, []string{"p", "q"}) {
		t.Errorf("SetTags() normalized to %q, want [p q]", worker.Tags)
	}
}

func TestRemove(t *testing.T) {
	directory := New()
	directory.Upsert(Status{Address: "a", State: protocol.StateLoggedIn})
	directory.Upsert(Status{Address: "b", State: protocol.StateLoggedIn})

	if directory.LoggedIn() != 2 {
		t.Fatalf("LoggedIn() = %d, want 2", directory.LoggedIn())
	}
	if !directory.Remove("a") {
		t.Fatal("Remove(a) reported nothing removed")
	}
	if directory.Remove("a") {
		t.Error("second Remove(a) reported a removal")
	}
	if got := addresses(directory.List(nil, false)); !slices.Equal(got, []string{"b"}) {
		t.Errorf("List() = %q after removal, want [b]", got)
	}
	if directory.LoggedIn() != 1 {
		t.Errorf("LoggedIn() = %d, want 1", directory.LoggedIn())
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"", AutoChooseName},
		{"127.0.0.1", LocalServerName},
		{"localhost", LocalServerName},
		{"node1", "node1"},
	}
	for _, test := range tests {
		worker := Worker{Address: test.address}
		if got := worker.DisplayName(); got != test.want {
			t.Errorf("DisplayName(%q) = %q, want %q", test.address, got, test.want)
		}
	}
}
