// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes and assembles the event stream a chat backend sends
// while an assistant reply is being generated.
//
// The wire format is line oriented. Each event is a line
//
//	data: {"content": "Hel", "done": false}
//
// and blank lines separate events. The Decoder turns arbitrarily chunked
// input into Events; the Assembler concatenates their content, reports the
// growing buffer to an observer and finalizes exactly once.
//
// # Usage
//
//	res, err := stream.Assemble(ctx, body, func(partial string) {
//	    fmt.Print("\r", partial)
//	})
//	var streamErr *stream.StreamError
//	if errors.As(err, &streamErr) {
//	    // connection closed early; res.Content still holds what arrived
//	}
package stream
