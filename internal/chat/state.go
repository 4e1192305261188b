// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrExchangeInFlight is returned when a conversation already has an
	// exchange in Sending or Streaming.
	ErrExchangeInFlight = errors.New("a reply is still in progress for this conversation")

	// ErrNoConversation is returned by Send when no conversation is active.
	ErrNoConversation = errors.New("no active conversation")

	// ErrUnknownConversation is returned for an ID the reconciler has not seen.
	ErrUnknownConversation = errors.New("conversation not found")

	// ErrEmptyMessage is returned by Send for blank content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrDeleteInProgress is returned while the conversation is being deleted.
	ErrDeleteInProgress = errors.New("conversation is being deleted")
)

// =============================================================================
// PHASE
// =============================================================================

// Phase is the exchange state of one conversation.
type Phase int

const (
	Idle Phase = iota
	Sending
	Streaming
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Busy reports whether an exchange is in progress.
func (p Phase) Busy() bool {
	return p == Sending || p == Streaming
}

// conversationState is owned by the Reconciler and guarded by its mutex.
type conversationState struct {
	messages  []model.Message
	phase     Phase
	streaming string
	lastErr   error
	deleting  bool
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a caller-owned copy of the observable state. Streaming holds
// the partial reply of the active conversation only.
type Snapshot struct {
	Version       uint64
	Conversations []model.Conversation
	ActiveID      string
	Messages      []model.Message
	Phase         Phase
	Streaming     string
	LastError     error
	// Busy lists conversations with an exchange in progress, active or not.
	Busy []string
}

// Active returns the active conversation metadata.
func (s Snapshot) Active() (model.Conversation, bool) {
	if i := model.FindConversation(s.Conversations, s.ActiveID); i >= 0 {
		return s.Conversations[i], true
	}
	return model.Conversation{}, false
}
