// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for rigchat commands.
//
// Commands always return errors; main decides how to show them.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/gateway"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/stream"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	// ExitInterrupted means a reply ended early; partial content was kept.
	ExitInterrupted = 9
)

// UsageError reports invalid command usage.
type UsageError struct {
	Msg   string
	Usage string
}

func (e *UsageError) Error() string {
	return e.Msg
}

func usageErr(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var verrs config.ValidateErrors
	var streamErr *stream.StreamError
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &verrs):
		return ExitConfigError
	case errors.Is(err, session.ErrNoSession), gateway.StatusCode(err) == http.StatusUnauthorized:
		return ExitAuthError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &streamErr):
		return ExitInterrupted
	case gateway.IsTransport(err):
		return ExitNetworkError
	case gateway.StatusCode(err) == http.StatusNotFound,
		errors.Is(err, storage.ErrConversationNotFound),
		errors.Is(err, chat.ErrUnknownConversation):
		return ExitNotFoundError
	}
	return ExitGeneralError
}

// hint suggests a next step for well-known failures.
func hint(err error) string {
	var usage *UsageError
	switch {
	case errors.Is(err, session.ErrNoSession), gateway.StatusCode(err) == http.StatusUnauthorized:
		return "run 'rigchat login' to sign in"
	case gateway.IsTransport(err):
		return "check backend.base_url, or start a local backend with 'rigchat devserver'"
	case errors.As(err, &usage) && usage.Usage != "":
		return "usage: " + usage.Usage
	case errors.As(err, &usage):
		return "run 'rigchat help' for usage"
	}
	return ""
}

// DisplayError writes err to w, as JSON when jsonMode is set.
func DisplayError(w io.Writer, s Styles, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		out := map[string]any{"success": false, "error": err.Error(), "exit_code": ExitCode(err)}
		if h := hint(err); h != "" {
			out["hint"] = h
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(out)
		return
	}

	fmt.Fprintf(w, "%s %s\n", s.Error.Render("[ERROR]"), err.Error())
	if h := hint(err); h != "" {
		fmt.Fprintf(w, "        %s\n", s.Dim.Render(h))
	}
}
