// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrStreamTruncated means the input ended before a done event arrived.
var ErrStreamTruncated = errors.New("stream ended without done event")

// ErrAlreadyFinalized is returned when an assembler is driven after it has
// produced its result.
var ErrAlreadyFinalized = errors.New("assembler already finalized")

// StreamError reports an abnormal termination while preserving the content
// received before it.
type StreamError struct {
	Partial string // Content received before the stream broke
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// RESULT
// =============================================================================

// Result is the finalized reply.
type Result struct {
	Content  string
	Complete bool // false when the stream ended without a done event
	Events   int
	Stats    Stats
}

// Stats holds timing collected while assembling.
type Stats struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time
	TTFT           time.Duration
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// Assembler folds events into a single growing string. Content is
// concatenated strictly in arrival order. It finalizes exactly once, either on
// a done event or when the input ends early.
type Assembler struct {
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	content   strings.Builder
	onPartial func(string)
	events    int
	finalized bool
	result    Result
	stats     Stats
	now       func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithPartial registers fn to receive the accumulated buffer after every
// event that carried content.
func WithPartial(fn func(partial string)) Option {
	return func(a *Assembler) { a.onPartial = fn }
}

// WithClock overrides the time source used for statistics.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler creates an assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	a.stats.StartTime = a.now()
	return a
}

// Add processes one event. It returns true once the assembler has finalized.
// Events arriving after finalization are ignored.
func (a *Assembler) Add(ev Event) bool {
	if a.finalized {
		return true
	}
	a.events++

	if ev.Content != "" {
		if a.content.Len() == 0 {
			a.stats.FirstTokenTime = a.now()
			a.stats.TTFT = a.stats.FirstTokenTime.Sub(a.stats.StartTime)
		}
		a.content.WriteString(ev.Content)
		if a.onPartial != nil && !ev.Done {
			a.onPartial(a.content.String())
		}
	}

	if ev.Done {
		a.finalize(true)
	}
	return a.finalized
}

// Finish finalizes an assembler whose input ended without a done event.
// cause is the transport error, or nil for a clean early EOF. The returned
// error is a *StreamError carrying the partial content. Calling Finish on a
// finalized assembler returns the existing result and a nil error.
func (a *Assembler) Finish(cause error) (Result, error) {
	if a.finalized {
		return a.result, nil
	}
	if cause == nil || errors.Is(cause, io.EOF) {
		cause = ErrStreamTruncated
	}
	a.finalize(false)
	return a.result, &StreamError{Partial: a.result.Content, Err: cause}
}

// Finalized reports whether the result has been produced.
func (a *Assembler) Finalized() bool {
	return a.finalized
}

// Content returns the content accumulated so far.
func (a *Assembler) Content() string {
	return a.content.String()
}

func (a *Assembler) finalize(complete bool) {
	a.finalized = true
	a.stats.EndTime = a.now()
	a.result = Result{
		Content:  a.content.String(),
		Complete: complete,
		Events:   a.events,
		Stats:    a.stats,
	}
}

// Run drains dec into the assembler and returns the final result. A stream
// that ends without a done event still yields its accumulated content along
// with a *StreamError. Cancelling ctx is treated as the transport closing.
func (a *Assembler) Run(ctx context.Context, dec *Decoder) (Result, error) {
	if a.finalized {
		return a.result, ErrAlreadyFinalized
	}

	for {
		if err := ctx.Err(); err != nil {
			return a.Finish(err)
		}

		ev, err := dec.Next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return a.Finish(err)
		}

		if a.Add(ev) {
			return a.result, nil
		}
	}
}

// Assemble is shorthand for decoding r and assembling it in one call.
func Assemble(ctx context.Context, r io.Reader, onPartial func(string)) (Result, error) {
	return NewAssembler(WithPartial(onPartial)).Run(ctx, NewDecoder(r))
}
