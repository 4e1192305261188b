// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message. The set is closed: the backend
// never exposes a system role to the client.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown message role %q", s)
	}
	return r, nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single committed message in a conversation. Content is
// immutable once the message is part of a conversation's list.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewUserMessage builds the optimistic user message inserted before the
// backend has seen it. The ID is temporary.
func NewUserMessage(conversationID, content string, now time.Time) Message {
	return Message{
		ID:             NewTempID(),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
		CreatedAt:      now,
	}
}

// NewAssistantMessage builds the assistant message committed once a stream
// has been assembled.
func NewAssistantMessage(conversationID, content string, now time.Time) Message {
	return Message{
		ID:             NewMessageID(),
		ConversationID: conversationID,
		Role:           RoleAssistant,
		Content:        content,
		CreatedAt:      now,
	}
}

// IsTemporary reports whether the message still carries a client-generated ID.
func (m Message) IsTemporary() bool {
	return strings.HasPrefix(m.ID, tempPrefix)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

const (
	tempPrefix    = "temp-"
	messagePrefix = "msg-"
)

// NewTempID returns a client-generated identifier for an optimistic message.
func NewTempID() string {
	return tempPrefix + uuid.NewString()
}

// NewMessageID returns an identifier for a locally committed assistant message.
func NewMessageID() string {
	return messagePrefix + uuid.NewString()
}

// MessagesResponse is the body of GET /conversations/:id/messages.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// =============================================================================
// STREAM CHUNK
// =============================================================================

// StreamChunk is one event of the message stream: `data: {"content":..,"done":..}`.
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}
