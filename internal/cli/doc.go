// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigchat command line: argument parsing,
// command dispatch, terminal styling and the interactive chat REPL.
//
// Each invocation builds an App from the process Env. Commands talk to the
// backend through the gateway client, keep the signed-in session in the
// session store and write through to the local conversation cache when it
// is enabled. Errors map to exit codes with ExitCode.
package cli
