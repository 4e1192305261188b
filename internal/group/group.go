// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package group buckets conversations into relative time windows for the
// conversation list.
package group

import (
	"time"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// BUCKETS
// =============================================================================

// Bucket identifies one time window.
type Bucket int

const (
	Today Bucket = iota
	Yesterday
	Previous7Days
	Previous30Days
	Older
)

// Buckets lists every bucket in evaluation and display order.
var Buckets = []Bucket{Today, Yesterday, Previous7Days, Previous30Days, Older}

// String returns the key used in the grouped view.
func (b Bucket) String() string {
	switch b {
	case Today:
		return "today"
	case Yesterday:
		return "yesterday"
	case Previous7Days:
		return "previous7Days"
	case Previous30Days:
		return "previous30Days"
	case Older:
		return "older"
	default:
		return "unknown"
	}
}

// Label returns the heading shown above the bucket.
func (b Bucket) Label() string {
	switch b {
	case Today:
		return "Today"
	case Yesterday:
		return "Yesterday"
	case Previous7Days:
		return "Previous 7 Days"
	case Previous30Days:
		return "Previous 30 Days"
	case Older:
		return "Older"
	default:
		return "Unknown"
	}
}

// =============================================================================
// GROUPED VIEW
// =============================================================================

// Groups is a derived partition of a conversation set. It is owned by the
// caller and never aliases the input slice.
type Groups struct {
	Today          []model.Conversation `json:"today"`
	Yesterday      []model.Conversation `json:"yesterday"`
	Previous7Days  []model.Conversation `json:"previous7Days"`
	Previous30Days []model.Conversation `json:"previous30Days"`
	Older          []model.Conversation `json:"older"`
}

// Get returns the conversations in bucket b.
func (g *Groups) Get(b Bucket) []model.Conversation {
	if p := g.slot(b); p != nil {
		return *p
	}
	return nil
}

// Len returns the total number of grouped conversations.
func (g *Groups) Len() int {
	return len(g.Today) + len(g.Yesterday) + len(g.Previous7Days) + len(g.Previous30Days) + len(g.Older)
}

func (g *Groups) slot(b Bucket) *[]model.Conversation {
	switch b {
	case Today:
		return &g.Today
	case Yesterday:
		return &g.Yesterday
	case Previous7Days:
		return &g.Previous7Days
	case Previous30Days:
		return &g.Previous30Days
	case Older:
		return &g.Older
	default:
		return nil
	}
}

// Boundaries holds the lower bound of each windowed bucket.
type Boundaries struct {
	Today          time.Time
	Yesterday      time.Time
	Previous7Days  time.Time
	Previous30Days time.Time
}

// BoundariesAt computes the window starts for reference instant now. Days are
// calendar days in now's location, so a daylight saving shift moves the
// boundary with the wall clock.
func BoundariesAt(now time.Time) Boundaries {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return Boundaries{
		Today:          today,
		Yesterday:      today.AddDate(0, 0, -1),
		Previous7Days:  today.AddDate(0, 0, -7),
		Previous30Days: today.AddDate(0, 0, -30),
	}
}

// Classify returns the bucket for an updatedAt instant. Rules are evaluated
// in bucket order and the first match wins.
func (b Boundaries) Classify(updatedAt time.Time) Bucket {
	switch {
	case !updatedAt.Before(b.Today):
		return Today
	case !updatedAt.Before(b.Yesterday):
		return Yesterday
	case !updatedAt.Before(b.Previous7Days):
		return Previous7Days
	case !updatedAt.Before(b.Previous30Days):
		return Previous30Days
	default:
		return Older
	}
}

// Group partitions convs into the five buckets relative to now. The relative
// order of the input is preserved within each bucket. convs is not modified.
func Group(convs []model.Conversation, now time.Time) Groups {
	bounds := BoundariesAt(now)
	var g Groups
	for _, c := range convs {
		p := g.slot(bounds.Classify(c.UpdatedAt))
		*p = append(*p, c)
	}
	return g
}

// GroupNow groups relative to the current time.
func GroupNow(convs []model.Conversation) Groups {
	return Group(convs, time.Now())
}
