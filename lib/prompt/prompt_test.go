// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package prompt

import "testing"

func TestDecline(t *testing.T) {
	calls := 0
	Decline.Prompt(Request{ID: NextID(), Kind: KindPassword}, func(answer Answer) {
		calls++
		if answer.Accepted || answer.Password != "" {
			t.Errorf("Decline answered %+v", answer)
		}
	})
	if calls != 1 {
		t.Errorf("answer called %d times, want 1", calls)
	}
}

func TestNextIDIncreases(t *testing.T) {
	first := NextID()
	if second := NextID(); second <= first {
		t.Errorf("NextID() = %d after %d", second, first)
	}
}
