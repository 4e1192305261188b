// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

// Result is the uniform envelope for non-streaming calls. Client methods
// unwrap it into (data, error); Err recovers the *APIError.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`

	err error
}

// Empty is the payload of calls that return no data.
type Empty struct{}

func failed[T any](err error) Result[T] {
	return Result[T]{Success: false, Error: err.Error(), err: err}
}

// Err returns the error behind a failed result, or nil.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	msg := r.Error
	if msg == "" {
		msg = DefaultErrorMessage
	}
	return &APIError{Kind: KindApplication, Message: msg}
}
