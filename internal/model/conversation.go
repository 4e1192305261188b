// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"
)

// MaxTitleRunes bounds titles derived from the first user message.
const MaxTitleRunes = 50

// DefaultTitle is shown for conversations with no title and no messages.
const DefaultTitle = "New Chat"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the metadata the backend returns for a conversation.
// The title may be empty until the first message is sent.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Preview   string    `json:"preview,omitempty"`
}

// ConversationsResponse is the body of GET /conversations.
type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

// DisplayTitle returns the title, falling back to the preview and then to
// DefaultTitle.
func (c Conversation) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	if p := strings.TrimSpace(c.Preview); p != "" {
		return DeriveTitle(p)
	}
	return DefaultTitle
}

// Touch records that a message was appended at t.
func (c *Conversation) Touch(t time.Time) {
	if t.After(c.UpdatedAt) {
		c.UpdatedAt = t
	}
}

// DeriveTitle builds a single-line title from message content, truncated to
// MaxTitleRunes runes.
func DeriveTitle(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) > MaxTitleRunes {
		return string(runes[:MaxTitleRunes-3]) + "..."
	}
	return content
}

// FindConversation returns the index of the conversation with id, or -1.
func FindConversation(convs []Conversation, id string) int {
	for i := range convs {
		if convs[i].ID == id {
			return i
		}
	}
	return -1
}
