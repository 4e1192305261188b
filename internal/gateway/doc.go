// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway is the HTTP client for the chat backend.
//
// Every non-streaming call returns its decoded payload and an *APIError on
// failure. Transport failures carry NetworkErrorMessage; non-2xx responses
// carry the backend's "error" field or DefaultErrorMessage. Use Wrap to get
// the uniform {success, data, error} envelope.
//
// SendMessage returns the raw event-stream body for the stream package to
// decode. The client never retries; callers decide.
//
// Credentials come from an explicit TokenSource, and an optional token
// bucket throttles outgoing requests.
package gateway
