// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/rigchat/internal/gateway"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/storage"
)

const conversationsUsage = "rigchat conversations [list | new [TITLE] | show ID | delete ID | delete-all --confirm | search QUERY]"

// Conversations handles the conversations subcommands.
func (a *App) Conversations(ctx context.Context) error {
	p := NewArgParser(a.args.Raw, "confirm")

	sub := p.Subcommand()
	if sub != "search" {
		if err := a.requireSession(); err != nil {
			return err
		}
	}

	switch sub {
	case "", "list", "ls":
		return a.listConversations(ctx)
	case "new", "create":
		return a.newConversation(ctx, p.Joined(1))
	case "show", "open":
		return a.showConversation(ctx, p.Positional(1))
	case "delete", "rm":
		return a.deleteConversation(ctx, p.Positional(1))
	case "delete-all":
		if !p.BoolFlag("confirm") {
			return usageErr("delete-all removes every conversation; pass --confirm")
		}
		return a.deleteAllConversations(ctx)
	case "search":
		return a.searchConversations(ctx, p.Joined(1))
	default:
		return &UsageError{Msg: fmt.Sprintf("unknown conversations command %q", sub), Usage: conversationsUsage}
	}
}

// fetchConversations lists from the backend and syncs the cache. When the
// backend is unreachable the cached list is returned with stale set.
func (a *App) fetchConversations(ctx context.Context) (convs []model.Conversation, stale bool, err error) {
	convs, err = a.client.ListConversations(ctx)
	cache := a.openCache()
	if err == nil {
		if cache != nil {
			if serr := cache.Sync(ctx, convs); serr != nil {
				a.logger.Printf("CACHE_SYNC_FAILED | error=%v", serr)
			}
		}
		return convs, false, nil
	}
	if cache == nil || !gateway.IsTransport(err) {
		return nil, false, err
	}

	cached, cerr := cache.ListConversations(ctx)
	if cerr != nil {
		a.logger.Printf("CACHE_READ_FAILED | error=%v", cerr)
		return nil, false, err
	}
	a.logger.Printf("CONVERSATIONS_FROM_CACHE | count=%d error=%v", len(cached), err)
	return cached, true, nil
}

func (a *App) listConversations(ctx context.Context) error {
	convs, stale, err := a.fetchConversations(ctx)
	if err != nil {
		return err
	}
	if stale {
		a.warn("Backend unreachable; showing cached conversations.")
	}
	if a.args.JSON {
		return a.writeJSON(convs)
	}
	renderGroups(a.env.Stdout, a.styles, convs, listOptions{
		Now:          a.env.Now(),
		PreviewWidth: a.cfg.UI.PreviewWidth,
	})
	return nil
}

func (a *App) newConversation(ctx context.Context, title string) error {
	conv, err := a.client.CreateConversation(ctx, title)
	if err != nil {
		return err
	}
	if cache := a.openCache(); cache != nil {
		if err := cache.SaveConversations(ctx, []model.Conversation{conv}); err != nil {
			a.logger.Printf("CACHE_WRITE_FAILED | op=save_conversations error=%v", err)
		}
	}
	if a.args.JSON {
		return a.writeJSON(conv)
	}
	a.printf("%s Created %s %s\n", a.styles.Success.Render("✓"), conv.DisplayTitle(), a.styles.Dim.Render(conv.ID))
	return nil
}

func (a *App) showConversation(ctx context.Context, id string) error {
	if id == "" {
		return &UsageError{Msg: "conversation ID required", Usage: "rigchat conversations show ID"}
	}
	msgs, err := a.client.ListMessages(ctx, id)
	if err != nil {
		return err
	}
	if cache := a.openCache(); cache != nil {
		if err := cache.SaveMessages(ctx, id, msgs); err != nil {
			a.logger.Printf("CACHE_WRITE_FAILED | op=save_messages error=%v", err)
		}
	}
	if a.args.JSON {
		return a.writeJSON(msgs)
	}
	renderMessages(a.env.Stdout, a.styles, msgs, a.markdown())
	return nil
}

func (a *App) deleteConversation(ctx context.Context, id string) error {
	if id == "" {
		return &UsageError{Msg: "conversation ID required", Usage: "rigchat conversations delete ID"}
	}
	if err := a.client.DeleteConversation(ctx, id); err != nil {
		return err
	}
	if cache := a.openCache(); cache != nil {
		if err := cache.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrConversationNotFound) {
			a.logger.Printf("CACHE_WRITE_FAILED | op=delete error=%v", err)
		}
	}
	a.printf("%s Deleted %s\n", a.styles.Success.Render("✓"), id)
	return nil
}

func (a *App) deleteAllConversations(ctx context.Context) error {
	if err := a.client.DeleteAllConversations(ctx); err != nil {
		return err
	}
	if cache := a.openCache(); cache != nil {
		if err := cache.DeleteAll(ctx); err != nil {
			a.logger.Printf("CACHE_WRITE_FAILED | op=delete_all error=%v", err)
		}
	}
	a.printf("%s Deleted all conversations\n", a.styles.Success.Render("✓"))
	return nil
}

// searchConversations matches titles and message text in the local cache.
func (a *App) searchConversations(ctx context.Context, query string) error {
	if query == "" {
		return &UsageError{Msg: "search query required", Usage: "rigchat conversations search QUERY"}
	}
	cache := a.openCache()
	if cache == nil {
		if a.cacheErr != nil {
			return fmt.Errorf("local cache unavailable: %w", a.cacheErr)
		}
		if !a.cfg.Cache.Enabled {
			return errors.New("local cache is disabled (cache.enabled = false)")
		}
		return errors.New("chat history is off (rigchat profile settings --chat-history on)")
	}
	found, err := cache.Search(ctx, query)
	if err != nil {
		return err
	}
	if a.args.JSON {
		return a.writeJSON(found)
	}
	if len(found) == 0 {
		a.println(a.styles.Dim.Render(fmt.Sprintf("No cached conversations match %q.", query)))
		return nil
	}
	renderGroups(a.env.Stdout, a.styles, found, listOptions{
		Now:          a.env.Now(),
		PreviewWidth: a.cfg.UI.PreviewWidth,
	})
	return nil
}
