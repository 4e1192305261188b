// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders every conversation as a readable transcript.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &MarkdownExporter{options: opts}
}

// Export renders data. Conversations keep the order they were exported in;
// messages are ordered by creation time. Messages whose conversation is not
// in the list are kept in a trailing section.
func (e *MarkdownExporter) Export(data model.ExportData) ([]byte, error) {
	byConv := make(map[string][]model.Message)
	for _, m := range data.Messages {
		byConv[m.ConversationID] = append(byConv[m.ConversationID], m)
	}

	var sb strings.Builder

	// YAML frontmatter with metadata
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "exported: %s\n", data.ExportedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "conversations: %d\n", len(data.Conversations))
	fmt.Fprintf(&sb, "messages: %d\n", len(data.Messages))
	sb.WriteString("generator: rigchat\n")
	sb.WriteString("---\n\n")

	sb.WriteString("# rigchat export\n\n")
	if len(data.Conversations) == 0 && len(data.Messages) == 0 {
		sb.WriteString("_No conversations._\n")
		return []byte(sb.String()), nil
	}

	for _, c := range data.Conversations {
		e.writeConversation(&sb, c.DisplayTitle(), c.CreatedAt, byConv[c.ID])
		delete(byConv, c.ID)
	}

	// Orphans, in a stable order.
	ids := make([]string, 0, len(byConv))
	for id := range byConv {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		e.writeConversation(&sb, "Unlisted conversation "+id, time.Time{}, byConv[id])
	}

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeConversation(sb *strings.Builder, title string, created time.Time, msgs []model.Message) {
	fmt.Fprintf(sb, "## %s\n\n", escapeMarkdown(util.SingleLine(title)))
	if !created.IsZero() {
		fmt.Fprintf(sb, "<sub>Started %s, %d messages</sub>\n\n", e.timestamp(created), len(msgs))
	}
	if len(msgs) == 0 {
		sb.WriteString("_No messages._\n\n")
		return
	}

	msgs = slices.Clone(msgs)
	slices.SortStableFunc(msgs, func(a, b model.Message) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	for _, m := range msgs {
		label := formatRoleLabel(m.Role)
		if e.options.IncludeTimestamps && !m.CreatedAt.IsZero() {
			fmt.Fprintf(sb, "### %s <sub>%s</sub>\n\n", label, e.timestamp(m.CreatedAt))
		} else {
			fmt.Fprintf(sb, "### %s\n\n", label)
		}
		sb.WriteString(strings.TrimSpace(m.Content))
		sb.WriteString("\n\n")
	}
}

func (e *MarkdownExporter) timestamp(t time.Time) string {
	return t.In(e.options.Location).Format("2006-01-02 15:04")
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func formatRoleLabel(r model.Role) string {
	switch r {
	case model.RoleUser:
		return "You"
	case model.RoleAssistant:
		return "Assistant"
	default:
		return "Unknown"
	}
}

// escapeMarkdown escapes characters that would change a heading's meaning.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
		"<", `\<`,
	)
	return r.Replace(s)
}
