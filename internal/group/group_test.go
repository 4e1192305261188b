// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package group

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jeranaias/rigchat/internal/model"
)

func conv(id string, updated time.Time) model.Conversation {
	return model.Conversation{ID: id, UpdatedAt: updated, CreatedAt: updated}
}

func ids(convs []model.Conversation) []string {
	out := make([]string, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.ID)
	}
	return out
}

// =============================================================================
// GROUPING TESTS
// =============================================================================

func TestGroup_RelativeOffsets(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	input := []model.Conversation{
		conv("now", now),
		conv("25h", now.Add(-25*time.Hour)),
		conv("3d", now.Add(-3*24*time.Hour)),
		conv("10d", now.Add(-10*24*time.Hour)),
		conv("40d", now.Add(-40*24*time.Hour)),
	}

	g := Group(input, now)

	want := map[Bucket][]string{
		Today:          {"now"},
		Yesterday:      {"25h"},
		Previous7Days:  {"3d"},
		Previous30Days: {"10d"},
		Older:          {"40d"},
	}
	for _, b := range Buckets {
		if diff := cmp.Diff(want[b], ids(g.Get(b))); diff != "" {
			t.Errorf("bucket %s mismatch (-want +got):\n%s", b, diff)
		}
	}
}

func TestGroup_ExactBoundaries(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 30, 0, 0, time.UTC)
	bounds := BoundariesAt(now)

	tests := []struct {
		name string
		at   time.Time
		want Bucket
	}{
		{"start of today", bounds.Today, Today},
		{"just before today", bounds.Today.Add(-time.Nanosecond), Yesterday},
		{"start of yesterday", bounds.Yesterday, Yesterday},
		{"just before yesterday", bounds.Yesterday.Add(-time.Nanosecond), Previous7Days},
		{"25h ago after midnight rolls two days back", now.Add(-25 * time.Hour), Previous7Days},
		{"start of 7 day window", bounds.Previous7Days, Previous7Days},
		{"just before 7 day window", bounds.Previous7Days.Add(-time.Nanosecond), Previous30Days},
		{"start of 30 day window", bounds.Previous30Days, Previous30Days},
		{"just before 30 day window", bounds.Previous30Days.Add(-time.Nanosecond), Older},
		{"future timestamps count as today", now.Add(48 * time.Hour), Today},
		{"zero time", time.Time{}, Older},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := bounds.Classify(tc.at); got != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.at, got, tc.want)
			}
		})
	}
}

func TestGroup_UsesReferenceLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 01:00 in Tokyo is still the previous calendar day in UTC.
	now := time.Date(2025, 6, 15, 1, 0, 0, 0, tokyo)
	updated := time.Date(2025, 6, 14, 16, 30, 0, 0, time.UTC) // 01:30 JST on the 15th

	g := Group([]model.Conversation{conv("x", updated)}, now.Add(time.Hour))
	if len(g.Today) != 1 {
		t.Errorf("expected conversation in today for JST reference, got %+v", g)
	}
}

func TestGroup_PartitionIsDisjointAndExhaustive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	now := time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC)

	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		input := make([]model.Conversation, n)
		for i := range input {
			offset := time.Duration(rng.Int63n(int64(60 * 24 * time.Hour)))
			input[i] = conv(fmt.Sprintf("c%d", i), now.Add(-offset))
		}

		g := Group(input, now)
		if g.Len() != n {
			t.Fatalf("round %d: grouped %d of %d", round, g.Len(), n)
		}

		seen := make(map[string]Bucket)
		for _, b := range Buckets {
			for _, c := range g.Get(b) {
				if prev, dup := seen[c.ID]; dup {
					t.Fatalf("round %d: %s in both %s and %s", round, c.ID, prev, b)
				}
				seen[c.ID] = b
			}
		}
		for _, c := range input {
			if _, ok := seen[c.ID]; !ok {
				t.Fatalf("round %d: %s missing from every bucket", round, c.ID)
			}
		}
	}
}

func TestGroup_PreservesOrderAndDoesNotAlias(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	input := []model.Conversation{
		conv("b", now.Add(-time.Minute)),
		conv("a", now.Add(-2*time.Minute)),
	}

	g := Group(input, now)
	if diff := cmp.Diff([]string{"b", "a"}, ids(g.Today)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	g.Today[0].Title = "changed"
	if input[0].Title != "" {
		t.Error("grouping aliased the input slice")
	}
}

func TestBucket_Strings(t *testing.T) {
	want := []string{"today", "yesterday", "previous7Days", "previous30Days", "older"}
	for i, b := range Buckets {
		if b.String() != want[i] {
			t.Errorf("Bucket(%d).String() = %q, want %q", i, b.String(), want[i])
		}
		if b.Label() == "" {
			t.Errorf("Bucket(%d) has empty label", i)
		}
	}
}
