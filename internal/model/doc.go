// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// These are the wire types exchanged with the chat backend and the in-memory
// types owned by the reconciler.
//
// # Key Types
//
//   - Conversation: server-assigned ID, title, timestamps and preview
//   - Message: role, content and timestamp within one conversation
//   - Role: closed enumeration (user, assistant)
//   - StreamChunk: one `data:` event of a streaming reply
//   - User, AuthResponse, ExportData: account and privacy payloads
//
// # Usage
//
//	msg := model.NewUserMessage(conv.ID, "Hello!", time.Now())
//	msg.IsTemporary() // true until the backend assigns an ID
package model
