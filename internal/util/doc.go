// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared across rigchat.
//
// String Utilities:
//   - TruncateRunes, TruncateWidth: rune and column aware truncation
//   - SingleLine: whitespace folding for list previews
//
// File Operations:
//   - AtomicWriteFile: crash-safe writes on any afero.Fs
//
// # Usage
//
//	preview := util.TruncateWidth(util.SingleLine(c.Preview), 48)
//	err := util.AtomicWriteFile(afero.NewOsFs(), path, data, 0o600)
package util
