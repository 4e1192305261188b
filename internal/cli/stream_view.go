// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/jeranaias/rigchat/internal/chat"
)

// streamView prints a reply as it streams in. It follows one conversation
// and writes only the text that is new since the previous snapshot, so a
// switch away simply stops the output.
type streamView struct {
	w io.Writer

	mu      sync.Mutex
	convID  string
	label   string
	printed strings.Builder
	live    bool
}

func newStreamView(w io.Writer) *streamView {
	return &streamView{w: w}
}

// start begins following convID and writes label.
func (v *streamView) start(convID, label string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.convID = convID
	v.label = label
	v.printed.Reset()
	v.live = true
	io.WriteString(v.w, label)
}

// update is the reconciler subscriber.
func (v *streamView) update(s chat.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.live || s.ActiveID != v.convID {
		return
	}
	n := v.printed.Len()
	if len(s.Streaming) <= n {
		return
	}
	delta := s.Streaming[n:]
	io.WriteString(v.w, delta)
	v.printed.WriteString(delta)
}

// stop ends live output and returns what was written after the label.
func (v *streamView) stop() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.live = false
	return v.printed.String()
}

// finish stops the view and completes the line with the part of content
// that was not streamed. If md is set and the output is a terminal the
// streamed text is replaced with the rendered markdown.
func (v *streamView) finish(content string, md *glamour.TermRenderer, width int) {
	printed := v.stop()

	if md != nil && content != "" {
		rows := displayRows(v.label+printed, width)
		out := termenv.NewOutput(v.w)
		if rows > 1 {
			out.ClearLines(rows - 1)
		}
		out.ClearLine()
		fmt.Fprintf(v.w, "\r%s%s\n", v.label, renderMarkdown(md, content))
		return
	}

	if rest, ok := strings.CutPrefix(content, printed); ok {
		io.WriteString(v.w, rest)
	}
	fmt.Fprintln(v.w)
}
