// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/jeranaias/rigchat/internal/model"
)

// DefaultMaxConversations is the cache size when none is configured.
const DefaultMaxConversations = 500

// ErrConversationNotFound is returned when a conversation is not cached.
var ErrConversationNotFound = errors.New("conversation not found")

// =============================================================================
// CACHE
// =============================================================================

// Cache is the local SQLite copy of conversations and their committed
// messages. It lets the CLI list and search history offline.
type Cache struct {
	db     *sql.DB
	path   string
	limit  int
	logger *log.Logger
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Cache{
		db:     db,
		path:   path,
		limit:  DefaultMaxConversations,
		logger: log.New(io.Discard, "", 0),
	}, nil
}

// WithLimit caps the number of cached conversations. Oldest by UpdatedAt are
// evicted first. n <= 0 disables the cap.
func (c *Cache) WithLimit(n int) *Cache {
	c.limit = n
	return c
}

// WithLogger sets the logger.
func (c *Cache) WithLogger(logger *log.Logger) *Cache {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Path returns the database location.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

const upsertConversation = `
INSERT INTO conversations (id, title, preview, created_at, updated_at, folded)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	preview = excluded.preview,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at,
	folded = excluded.folded`

// SaveConversations inserts or updates convs.
func (c *Cache) SaveConversations(ctx context.Context, convs []model.Conversation) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		for _, conv := range convs {
			if err := saveConversation(ctx, tx, conv); err != nil {
				return err
			}
		}
		return c.enforceLimit(ctx, tx)
	})
}

// Sync replaces the cached conversation set with convs, dropping
// conversations (and their messages) the backend no longer returns.
func (c *Cache) Sync(ctx context.Context, convs []model.Conversation) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		keep := make(map[string]bool, len(convs))
		for _, conv := range convs {
			keep[conv.ID] = true
			if err := saveConversation(ctx, tx, conv); err != nil {
				return err
			}
		}

		ids, err := queryIDs(ctx, tx, "SELECT id FROM conversations")
		if err != nil {
			return err
		}
		for _, id := range ids {
			if keep[id] {
				continue
			}
			if err := deleteConversation(ctx, tx, id); err != nil {
				return err
			}
		}
		return c.enforceLimit(ctx, tx)
	})
}

func saveConversation(ctx context.Context, tx *sql.Tx, conv model.Conversation) error {
	_, err := tx.ExecContext(ctx, upsertConversation,
		conv.ID, conv.Title, conv.Preview,
		toMicros(conv.CreatedAt), toMicros(conv.UpdatedAt),
		Fold(conv.Title+"\n"+conv.Preview))
	if err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", conv.ID, err)
	}
	return nil
}

// ListConversations returns every cached conversation, most recently updated
// first.
func (c *Cache) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, preview, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return scanConversations(rows)
}

// Conversation returns one cached conversation.
func (c *Cache) Conversation(ctx context.Context, id string) (model.Conversation, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, title, preview, created_at, updated_at
		FROM conversations WHERE id = ?`, id)

	var conv model.Conversation
	var created, updated int64
	err := row.Scan(&conv.ID, &conv.Title, &conv.Preview, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	conv.CreatedAt, conv.UpdatedAt = fromMicros(created), fromMicros(updated)
	return conv, nil
}

// Delete removes a conversation and its messages.
func (c *Cache) Delete(ctx context.Context, id string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConversationNotFound
		}
		return nil
	})
}

// DeleteAll empties the cache.
func (c *Cache) DeleteAll(ctx context.Context) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
			return fmt.Errorf("failed to clear messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM conversations"); err != nil {
			return fmt.Errorf("failed to clear conversations: %w", err)
		}
		return nil
	})
}

func deleteConversation(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// enforceLimit evicts the least recently updated conversations over the cap.
func (c *Cache) enforceLimit(ctx context.Context, tx *sql.Tx) error {
	if c.limit <= 0 {
		return nil
	}
	evicted, err := queryIDs(ctx, tx,
		"SELECT id FROM conversations ORDER BY updated_at DESC, id LIMIT -1 OFFSET ?", c.limit)
	if err != nil {
		return err
	}
	for _, id := range evicted {
		if err := deleteConversation(ctx, tx, id); err != nil {
			return err
		}
	}
	if len(evicted) > 0 {
		c.logger.Printf("CACHE_EVICT | count=%d limit=%d", len(evicted), c.limit)
	}
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

const upsertMessage = `
INSERT INTO messages (id, conversation_id, role, content, created_at, folded)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(conversation_id, id) DO UPDATE SET
	role = excluded.role,
	content = excluded.content,
	created_at = excluded.created_at,
	folded = excluded.folded`

// SaveMessages replaces the cached messages of a conversation.
func (c *Cache) SaveMessages(ctx context.Context, conversationID string, msgs []model.Message) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conversationID); err != nil {
			return fmt.Errorf("failed to clear messages: %w", err)
		}
		for _, m := range msgs {
			m.ConversationID = conversationID
			if err := saveMessage(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendMessage adds one committed message and bumps the conversation's
// UpdatedAt. The first user message becomes the preview if none is set.
func (c *Cache) AppendMessage(ctx context.Context, m model.Message) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveMessage(ctx, tx, m); err != nil {
			return err
		}

		var title, preview string
		err := tx.QueryRowContext(ctx,
			"SELECT title, preview FROM conversations WHERE id = ?", m.ConversationID).Scan(&title, &preview)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}
		if preview == "" && m.Role == model.RoleUser {
			preview = m.Content
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE conversations SET
				updated_at = MAX(updated_at, ?),
				preview = ?,
				folded = ?
			WHERE id = ?`,
			toMicros(m.CreatedAt), preview, Fold(title+"\n"+preview), m.ConversationID)
		if err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		return nil
	})
}

func saveMessage(ctx context.Context, tx *sql.Tx, m model.Message) error {
	_, err := tx.ExecContext(ctx, upsertMessage,
		m.ID, m.ConversationID, string(m.Role), m.Content, toMicros(m.CreatedAt), Fold(m.Content))
	if err != nil {
		return fmt.Errorf("failed to save message %s: %w", m.ID, err)
	}
	return nil
}

// LoadMessages returns the cached messages of a conversation in commit order.
func (c *Cache) LoadMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var role string
		var created int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = model.Role(role)
		m.CreatedAt = fromMicros(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// =============================================================================
// SEARCH
// =============================================================================

// Search returns conversations whose title, preview or any message contains
// query, compared after NFKC normalization and case folding. An empty query
// returns every conversation.
func (c *Cache) Search(ctx context.Context, query string) ([]model.Conversation, error) {
	needle := strings.TrimSpace(Fold(query))
	if needle == "" {
		return c.ListConversations(ctx)
	}
	pattern := "%" + escapeLike(needle) + "%"

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, preview, created_at, updated_at
		FROM conversations c
		WHERE c.folded LIKE ?1 ESCAPE '\'
		   OR EXISTS (
				SELECT 1 FROM messages m
				WHERE m.conversation_id = c.id AND m.folded LIKE ?1 ESCAPE '\')
		ORDER BY updated_at DESC, id`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search conversations: %w", err)
	}
	return scanConversations(rows)
}

// Fold normalizes s for case-insensitive matching.
func Fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Cache) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanConversations(rows *sql.Rows) ([]model.Conversation, error) {
	defer rows.Close()

	convs := []model.Conversation{}
	for rows.Next() {
		var conv model.Conversation
		var created, updated int64
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.Preview, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conv.CreatedAt, conv.UpdatedAt = fromMicros(created), fromMicros(updated)
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
