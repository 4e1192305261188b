// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL for rigchat.
//
// Replies stream into the terminal as they arrive. Ctrl+C cancels the reply
// in flight and keeps what arrived; Ctrl+C or Ctrl+D at the prompt exits.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/stream"
)

const chatHelp = `Commands:
  /new [TITLE]    Start a new conversation
  /switch ID|N    Switch conversation (N is a number from /list)
  /list           List conversations
  /history        Show the current conversation
  /help           Show this help
  /quit, /exit    Leave chat
`

// chatSession is the state of one REPL run.
type chatSession struct {
	app   *App
	r     *chat.Reconciler
	view  *streamView
	input lineReader

	// listed is the order of the last /list, for /switch N.
	listed    []model.Conversation
	signedOut atomic.Bool
}

// Chat runs the interactive REPL.
func (a *App) Chat(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	p := NewArgParser(a.args.Raw)

	// Interrupts are handled per reply, so the session outlives them.
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	s := &chatSession{
		app:  a,
		r:    a.reconciler(),
		view: newStreamView(a.env.Stdout),
	}
	defer s.r.Wait()
	unsubscribe := s.r.Subscribe(s.view.update)
	defer unsubscribe()

	if err := s.r.Refresh(ctx); err != nil {
		return err
	}
	if id := p.Flag("conversation"); id != "" {
		if err := s.r.Open(ctx, id); err != nil {
			return err
		}
	}
	s.watchSession(ctx)

	s.input = a.newLineReader()
	defer func() {
		if err := s.input.Close(); err != nil {
			a.logger.Printf("HISTORY_SAVE_FAILED | error=%v", err)
		}
	}()

	s.banner()
	return s.loop(ctx)
}

func (s *chatSession) banner() {
	a := s.app
	if !a.env.StdoutTTY {
		return
	}
	who := "unknown"
	if u, ok := a.store.User(); ok {
		who = u.Email
	}
	a.println(a.styles.Title.Render("rigchat") + " " + a.styles.Dim.Render("signed in as "+who))
	if conv, ok := s.r.Snapshot().Active(); ok {
		a.println(a.styles.Dim.Render("Continuing " + conv.DisplayTitle()))
		renderMessages(a.env.Stdout, a.styles, s.r.Messages(conv.ID), a.markdown())
	}
	a.println(a.styles.Dim.Render("Type /help for commands, /quit to leave."))
}

// watchSession follows logins and logouts made by other rigchat processes.
func (s *chatSession) watchSession(ctx context.Context) {
	a := s.app
	if !a.cfg.Session.Watch {
		return
	}
	err := a.store.Watch(ctx, func(_ session.Session, ok bool) {
		if !ok && !s.signedOut.Swap(true) {
			a.warn("Signed out from another terminal; session ends after this message.")
		}
	})
	if err != nil && !errors.Is(err, session.ErrWatchUnsupported) {
		a.logger.Printf("SESSION_WATCH_FAILED | error=%v", err)
	}
}

func (s *chatSession) loop(ctx context.Context) error {
	a := s.app
	prompt := roleLabel(a.styles, model.RoleUser)
	for {
		if s.signedOut.Load() {
			return session.ErrNoSession
		}

		line, err := s.input.ReadLine(prompt)
		if errors.Is(err, io.EOF) {
			if a.env.StdinTTY {
				a.println()
			}
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := s.command(ctx, line)
			if err != nil {
				DisplayError(a.env.Stderr, a.styles, err, false)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.send(ctx, line); err != nil {
			if ExitCode(err) == ExitAuthError {
				return err
			}
			// Cut-off replies were already reported.
			var streamErr *stream.StreamError
			if !errors.As(err, &streamErr) {
				DisplayError(a.env.Stderr, a.styles, err, false)
			}
		}
	}
}

// send runs one exchange. Ctrl+C cancels only this reply.
func (s *chatSession) send(ctx context.Context, content string) error {
	a := s.app
	if _, err := s.r.EnsureConversation(ctx); err != nil {
		return err
	}

	exCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	label := roleLabel(a.styles, model.RoleAssistant)
	if _, err := a.exchange(exCtx, s.r, s.view, label, content); err != nil {
		a.reportExchange(err)
		return err
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command and reports whether the REPL should exit.
func (s *chatSession) command(ctx context.Context, line string) (quit bool, err error) {
	a := s.app
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help", "/?":
		fmt.Fprint(a.env.Stdout, chatHelp)
	case "/new":
		conv, err := s.r.NewConversation(ctx, arg)
		if err != nil {
			return false, err
		}
		a.printf("%s %s %s\n", a.styles.Success.Render("✓"), conv.DisplayTitle(), a.styles.Dim.Render(conv.ID))
	case "/list", "/ls":
		if err := s.r.Refresh(ctx); err != nil {
			return false, err
		}
		snap := s.r.Snapshot()
		s.listed = renderGroups(a.env.Stdout, a.styles, snap.Conversations, listOptions{
			Now:          a.env.Now(),
			Active:       snap.ActiveID,
			PreviewWidth: a.cfg.UI.PreviewWidth,
			Numbered:     true,
		})
	case "/switch", "/open":
		return false, s.switchTo(ctx, arg)
	case "/history":
		id := s.r.ActiveID()
		if id == "" {
			a.println(a.styles.Dim.Render("No conversation yet; send a message to start one."))
			return false, nil
		}
		renderMessages(a.env.Stdout, a.styles, s.r.Messages(id), a.markdown())
	default:
		return false, usageErr("unknown command %s (try /help)", name)
	}
	return false, nil
}

// switchTo accepts a conversation ID or a 1-based number from the last
// /list.
func (s *chatSession) switchTo(ctx context.Context, arg string) error {
	a := s.app
	if arg == "" {
		return usageErr("usage: /switch ID|N")
	}
	id := arg
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(s.listed) {
			return usageErr("no conversation %d in the last /list", n)
		}
		id = s.listed[n-1].ID
	}
	if err := s.r.Open(ctx, id); err != nil {
		return err
	}
	conv, _ := s.r.Snapshot().Active()
	a.printf("%s %s\n", a.styles.Success.Render("Switched to"), conv.DisplayTitle())
	renderMessages(a.env.Stdout, a.styles, s.r.Messages(id), a.markdown())
	return nil
}
