// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session keeps the bearer token and cached profile between runs.
//
// # Key Types
//
//   - Store: file-backed session, implements gateway.TokenSource
//   - Sealer: optional AES-256-GCM encryption of the token at rest
//
// # Usage
//
//	store := session.NewStore(afero.NewOsFs(), path)
//	if key := os.Getenv("RIGCHAT_SESSION_KEY"); key != "" {
//	    store.WithSealer(session.NewSealer(key))
//	}
//	client := gateway.New(baseURL, store)
//
// Watch picks up logins and logouts made by another rigchat process.
package session
