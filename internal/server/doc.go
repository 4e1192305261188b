// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides an in-memory development backend for rigchat.
//
// It speaks the same REST and event-stream protocol as the production chat
// backend, so the CLI and the integration tests can run without one.
// State lives in memory and is lost when the process exits.
//
// # Endpoints
//
//   - POST   /auth/login, /auth/register, /auth/google
//   - POST   /auth/forgot-password, /auth/reset-password
//   - POST   /auth/logout                 (bearer token)
//   - GET    /user/profile, PUT /user/profile, PUT /user/password
//   - GET    /user/export, DELETE /user/delete
//   - GET    /conversations, POST /conversations, DELETE /conversations
//   - DELETE /conversations/:id
//   - GET    /conversations/:id/messages
//   - POST   /conversations/:id/messages  (text/event-stream reply)
//
// The demo account test@test.com / password always exists.
//
// # Usage
//
//	srv := server.New(server.Options{Delay: 40 * time.Millisecond})
//	if err := srv.ListenAndServe(ctx, server.DefaultAddr); err != nil {
//		log.Fatal(err)
//	}
package server
