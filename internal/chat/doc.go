// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat reconciles optimistic local messages with the streamed
// backend reply.
//
// Each conversation runs its own state machine. Send appends the user
// message at once, opens the stream, exposes the growing reply through
// Snapshot.Streaming, and commits the final assistant message when the
// stream finishes or breaks. Only one exchange per conversation may be in
// flight; different conversations are independent.
//
// # Usage
//
//	r := chat.New(client, chat.WithRecorder(cache))
//	unsubscribe := r.Subscribe(func(s chat.Snapshot) { render(s) })
//	defer unsubscribe()
//
//	if _, err := r.EnsureConversation(ctx); err != nil {
//	    return err
//	}
//	reply, err := r.SendAndWait(ctx, "hello")
package chat
