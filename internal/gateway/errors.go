// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// User-facing messages for failures the backend did not describe.
const (
	NetworkErrorMessage = "Network error. Please try again."
	DefaultErrorMessage = "An error occurred"
)

// ErrorKind classifies an APIError.
type ErrorKind int

const (
	// KindTransport covers connection failures and unreadable responses.
	KindTransport ErrorKind = iota
	// KindApplication covers non-2xx responses from the backend.
	KindApplication
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// APIError is returned by every gateway call that did not succeed. Message is
// safe to show to the user verbatim.
type APIError struct {
	Kind    ErrorKind
	Op      string // e.g. "ListConversations"
	Status  int    // HTTP status, zero for transport failures
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// Detail returns a diagnostic string suitable for logs.
func (e *APIError) Detail() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// IsTransport reports whether err is a transport-level APIError.
func IsTransport(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindTransport
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func transportError(op string, cause error) *APIError {
	return &APIError{Kind: KindTransport, Op: op, Message: NetworkErrorMessage, Cause: cause}
}

// applicationError builds the error for a non-2xx response, preferring the
// backend's own "error" field.
func applicationError(op string, status int, body []byte) *APIError {
	var payload struct {
		Error string `json:"error"`
	}
	msg := DefaultErrorMessage
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		msg = payload.Error
	}
	return &APIError{Kind: KindApplication, Op: op, Status: status, Message: msg}
}
