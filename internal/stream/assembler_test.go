// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sse(events ...string) string {
	var b strings.Builder
	for _, e := range events {
		b.WriteString("data: ")
		b.WriteString(e)
		b.WriteString("\n\n")
	}
	return b.String()
}

// =============================================================================
// ASSEMBLER TESTS
// =============================================================================

func TestAssembler_ConcatenatesInArrivalOrder(t *testing.T) {
	input := sse(`{"content":"Hi"}`, `{"content":" there"}`, `{"content":"","done":true}`)

	var partials []string
	res, err := Assemble(context.Background(), strings.NewReader(input), func(p string) {
		partials = append(partials, p)
	})

	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, "Hi there", res.Content)
	assert.Equal(t, []string{"Hi", "Hi there"}, partials)
	assert.Equal(t, 3, res.Events)
}

func TestAssembler_NoPartialAfterDone(t *testing.T) {
	a := NewAssembler()
	var partials []string
	a.onPartial = func(p string) { partials = append(partials, p) }

	assert.False(t, a.Add(Event{Content: "a"}))
	assert.True(t, a.Add(Event{Content: "b", Done: true}))
	assert.True(t, a.Add(Event{Content: "c"}))

	assert.Equal(t, []string{"a"}, partials)
	assert.Equal(t, "ab", a.Content())

	res, err := a.Finish(nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", res.Content)
	assert.True(t, res.Complete)
}

func TestAssembler_EmptyContentSkipsPartial(t *testing.T) {
	var calls int
	a := NewAssembler(WithPartial(func(string) { calls++ }))
	a.Add(Event{Content: ""})
	a.Add(Event{Content: "x"})
	a.Add(Event{Content: ""})

	assert.Equal(t, 1, calls)
}

func TestAssembler_EarlyEOFFinalizesWithPartial(t *testing.T) {
	input := sse(`{"content":"partial"}`)

	res, err := Assemble(context.Background(), strings.NewReader(input), nil)

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.ErrorIs(t, err, ErrStreamTruncated)
	assert.Equal(t, "partial", streamErr.Partial)
	assert.Equal(t, "partial", res.Content)
	assert.False(t, res.Complete)
}

func TestAssembler_EarlyEOFWithNothing(t *testing.T) {
	res, err := Assemble(context.Background(), strings.NewReader(""), nil)

	require.ErrorIs(t, err, ErrStreamTruncated)
	assert.Equal(t, "", res.Content)
	assert.False(t, res.Complete)
	assert.Equal(t, 0, res.Events)
}

func TestAssembler_TransportErrorPreservesContent(t *testing.T) {
	boom := errors.New("connection dropped")
	r := io.MultiReader(strings.NewReader(sse(`{"content":"abc"}`)), iotest.ErrReader(boom))

	res, err := Assemble(context.Background(), r, nil)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, "abc", res.Content)
}

func TestAssembler_FinalizesExactlyOnce(t *testing.T) {
	a := NewAssembler()
	a.Add(Event{Content: "x"})

	first, err := a.Finish(io.EOF)
	require.Error(t, err)

	second, err := a.Finish(errors.New("again"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = a.Run(context.Background(), NewDecoder(strings.NewReader(sse(`{"content":"y"}`))))
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.Equal(t, "x", a.Content())
}

func TestAssembler_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()

	a := NewAssembler(WithPartial(func(p string) {
		if p == "first" {
			cancel()
			pw.CloseWithError(context.Canceled)
		}
	}))

	go func() {
		pw.Write([]byte(sse(`{"content":"first"}`)))
	}()

	res, err := a.Run(ctx, NewDecoder(pr))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "first", res.Content)
	assert.False(t, res.Complete)
}

func TestAssembler_DoneCarriesTrailingContent(t *testing.T) {
	input := sse(`{"content":"Hello"}`, `{"content":" world","done":true}`)

	res, err := Assemble(context.Background(), strings.NewReader(input), nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", res.Content)
}

func TestStreamError_Message(t *testing.T) {
	err := &StreamError{Partial: "abc", Err: ErrStreamTruncated}
	assert.Contains(t, err.Error(), "3 chars")

	err = &StreamError{Err: ErrStreamTruncated}
	assert.Equal(t, "stream error: stream ended without done event", err.Error())
}
