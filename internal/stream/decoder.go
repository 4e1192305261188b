// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes and assembles the event stream a chat backend sends
// while an assistant reply is being generated.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// MaxLineSize is the maximum accepted length of a single event line (64KB).
// Longer lines are dropped like any other malformed line.
const MaxLineSize = 64 * 1024

// DataPrefix marks a line that carries an event payload.
const DataPrefix = "data:"

// Event is one decoded increment of the reply.
type Event = model.StreamChunk

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns an arbitrarily chunked byte stream into discrete events.
//
// Partial lines are buffered across reads and only decoded once the line
// terminator arrives. Lines without the data prefix and payloads that are not
// valid JSON objects are skipped. Once an event with Done set has been
// returned the decoder is exhausted and every further call returns io.EOF.
//
// A Decoder is consumed exactly once and is not safe for concurrent use.
type Decoder struct {
	reader  *bufio.Reader
	line    []byte
	err     error // sticky; io.EOF after done or end of input
	skipped int
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

// Next returns the next event. It returns io.EOF when the stream ended
// normally (end of input or after a done event) and the underlying read error
// when the transport failed. A trailing fragment with no line terminator is
// discarded.
func (d *Decoder) Next() (Event, error) {
	if d.err != nil {
		return Event{}, d.err
	}

	for {
		line, err := d.readLine()
		if err != nil {
			d.err = err
			return Event{}, err
		}

		ev, ok := parseLine(line)
		if !ok {
			if len(line) > 0 {
				d.skipped++
			}
			continue
		}
		if ev.Done {
			d.err = io.EOF
		}
		return ev, nil
	}
}

// Events returns the remaining events as a sequence. A transport error is
// yielded once as the final element; normal termination yields nothing extra.
func (d *Decoder) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := d.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(Event{}, err)
				}
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Skipped returns how many non-empty lines were ignored so far.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// readLine returns the next complete line without its terminator. Lines that
// exceed MaxLineSize come back empty so the caller ignores them.
func (d *Decoder) readLine() ([]byte, error) {
	d.line = d.line[:0]
	overflow := false

	for {
		frag, err := d.reader.ReadSlice('\n')
		if !overflow {
			if len(d.line)+len(frag) > MaxLineSize+2 {
				overflow = true
				d.line = d.line[:0]
			} else {
				d.line = append(d.line, frag...)
			}
		}

		switch {
		case err == nil:
			if overflow {
				d.skipped++
				return nil, nil
			}
			return bytes.TrimRight(d.line, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			// io.EOF with a partial line, or a transport error: the fragment
			// never got its terminator and is dropped.
			return nil, err
		}
	}
}

// parseLine decodes a `data:` line. The boolean is false for lines that carry
// no usable event.
func parseLine(line []byte) (Event, bool) {
	if !bytes.HasPrefix(line, []byte(DataPrefix)) {
		return Event{}, false
	}

	payload := bytes.TrimSpace(line[len(DataPrefix):])
	if len(payload) == 0 || payload[0] != '{' {
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, false
	}
	return ev, true
}
