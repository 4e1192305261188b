// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/rigchat/internal/group"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// titleWidth is the column width of conversation titles in listings.
const titleWidth = 28

// writeJSON prints v as indented JSON.
func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.env.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// MARKDOWN
// =============================================================================

// newMarkdown builds a glamour renderer for style, wrapping at width.
func newMarkdown(style string, width int) (*glamour.TermRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	return glamour.NewTermRenderer(opts...)
}

// markdown returns the renderer for the terminal, or nil when output is
// piped or markdown is disabled.
func (a *App) markdown() *glamour.TermRenderer {
	if !a.cfg.UI.Markdown || !a.env.StdoutTTY {
		return nil
	}
	width := min(terminalWidth(a.env.Stdout), MaxRenderWidth)
	r, err := newMarkdown(a.cfg.UI.Style, width)
	if err != nil {
		a.logger.Printf("MARKDOWN_UNAVAILABLE | error=%v", err)
		return nil
	}
	return r
}

// renderMarkdown renders content, or returns it unchanged when r is nil or
// rendering fails.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// CONVERSATION LISTS
// =============================================================================

// listOptions controls renderGroups.
type listOptions struct {
	Now          time.Time
	Active       string
	PreviewWidth int
	// Numbered prefixes each row with its 1-based position across groups.
	Numbered bool
}

// renderGroups writes convs bucketed by recency. It returns the
// conversations in the order they were printed.
func renderGroups(w io.Writer, s Styles, convs []model.Conversation, opts listOptions) []model.Conversation {
	if len(convs) == 0 {
		fmt.Fprintln(w, s.Dim.Render("No conversations yet."))
		return nil
	}

	groups := group.Group(convs, opts.Now)
	printed := make([]model.Conversation, 0, len(convs))
	first := true
	for _, b := range group.Buckets {
		items := groups.Get(b)
		if len(items) == 0 {
			continue
		}
		if !first {
			fmt.Fprintln(w)
		}
		first = false
		fmt.Fprintln(w, s.Section.Render(b.Label()))

		for _, c := range items {
			printed = append(printed, c)
			fmt.Fprintln(w, formatRow(s, c, b, len(printed), opts))
		}
	}
	return printed
}

func formatRow(s Styles, c model.Conversation, b group.Bucket, n int, opts listOptions) string {
	marker := "  "
	if c.ID == opts.Active {
		marker = s.Active.Render("> ")
	}
	num := ""
	if opts.Numbered {
		num = s.Dim.Render(fmt.Sprintf("%2d ", n))
	}

	title := util.PadWidth(util.TruncateWidth(util.SingleLine(c.DisplayTitle()), titleWidth), titleWidth)
	if c.ID == opts.Active {
		title = s.Active.Render(title)
	}

	row := marker + num + title + "  " + s.Dim.Render(formatStamp(c.UpdatedAt, b, opts.Now))
	if c.Preview != "" && opts.PreviewWidth > 0 {
		row += "  " + s.Value.Render(util.TruncateWidth(util.SingleLine(c.Preview), opts.PreviewWidth))
	}
	return row + "  " + s.Dim.Render(c.ID)
}

// formatStamp shows a time for recent buckets and a date for older ones.
// Every stamp has the same width so columns line up.
func formatStamp(t time.Time, b group.Bucket, now time.Time) string {
	t = t.In(now.Location())
	switch b {
	case group.Today, group.Yesterday:
		return t.Format("     15:04")
	case group.Previous7Days:
		return t.Format("Mon  15:04")
	case group.Previous30Days:
		return t.Format("Jan _2    ")
	default:
		return t.Format("2006-01-02")
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

// roleLabel is the prompt-style prefix for a speaker.
func roleLabel(s Styles, r model.Role) string {
	if r == model.RoleUser {
		return s.User.Render("you> ")
	}
	return s.Assistant.Render("assistant> ")
}

// renderMessages writes a transcript. md renders assistant replies when set.
func renderMessages(w io.Writer, s Styles, msgs []model.Message, md *glamour.TermRenderer) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, s.Dim.Render("No messages yet."))
		return
	}
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		content := m.Content
		if m.Role == model.RoleAssistant {
			content = renderMarkdown(md, content)
		}
		fmt.Fprintf(w, "%s%s\n", roleLabel(s, m.Role), content)
	}
}
