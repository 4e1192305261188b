// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
)

// Ask sends one message and prints the reply. The text comes from the
// arguments, or from stdin when it is piped.
func (a *App) Ask(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	p := NewArgParser(a.args.Raw)

	text := p.Joined(0)
	if text == "" && !a.env.StdinTTY {
		b, err := io.ReadAll(a.in)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = strings.TrimSpace(string(b))
	}
	if strings.TrimSpace(text) == "" {
		return &UsageError{Msg: "nothing to ask", Usage: "rigchat ask [--conversation ID] TEXT"}
	}

	r := a.reconciler()
	defer r.Wait()

	if id := p.Flag("conversation"); id != "" {
		if err := r.Refresh(ctx); err != nil {
			return err
		}
		if err := r.Open(ctx, id); err != nil {
			return err
		}
	} else if _, err := r.NewConversation(ctx, ""); err != nil {
		return err
	}

	label := ""
	if a.env.StdoutTTY {
		label = roleLabel(a.styles, model.RoleAssistant)
	}
	view := newStreamView(a.replyWriter())
	unsubscribe := r.Subscribe(view.update)
	defer unsubscribe()

	reply, err := a.exchange(ctx, r, view, label, text)
	if err != nil {
		a.reportExchange(err)
		return err
	}
	if a.args.JSON {
		return a.writeJSON(reply)
	}
	return nil
}

// replyWriter is where streamed replies go. With --json the reply is
// printed once as JSON instead.
func (a *App) replyWriter() io.Writer {
	if a.args.JSON {
		return io.Discard
	}
	return a.env.Stdout
}

// exchange sends content on the active conversation and streams the reply
// through view. Complete replies are re-rendered as markdown on a terminal.
func (a *App) exchange(ctx context.Context, r *chat.Reconciler, view *streamView, label, content string) (model.Message, error) {
	view.start(r.ActiveID(), label)
	ex, err := r.Send(ctx, content)
	if err != nil {
		view.stop()
		fmt.Fprintln(view.w)
		return model.Message{}, err
	}
	// The exchange always settles, cancelled or not.
	reply, err := ex.Wait(context.WithoutCancel(ctx))

	md := a.markdown()
	if err != nil || a.args.JSON {
		md = nil
	}
	view.finish(ex.Result().Content, md, terminalWidth(a.env.Stdout))
	return reply, err
}

// reportExchange explains a failed or cut-off reply on stderr.
func (a *App) reportExchange(err error) {
	var streamErr *stream.StreamError
	if errors.As(err, &streamErr) {
		if streamErr.Partial != "" {
			a.warn("Reply interrupted after %d characters; the partial reply was kept.", len(streamErr.Partial))
		} else {
			a.warn("Reply interrupted before any content arrived.")
		}
	}
}
