// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export formats an account data export for saving.
//
// # Supported Formats
//
//   - JSON: the backend export as received, indented
//   - Markdown: one section per conversation with its transcript
//
// # Usage
//
//	exp, err := export.New(export.FormatMarkdown, nil)
//	out, err := exp.Export(data)
package export
