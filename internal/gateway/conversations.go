// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/rigchat/internal/model"
)

// ListConversations returns every conversation of the signed-in user.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	r := call[model.ConversationsResponse](ctx, c, "ListConversations", resty.MethodGet, "/conversations", nil, nil)
	return r.Data.Conversations, r.Err()
}

// CreateConversation creates a conversation. An empty title lets the backend
// choose one.
func (c *Client) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	body := struct {
		Title string `json:"title,omitempty"`
	}{title}
	r := call[model.Conversation](ctx, c, "CreateConversation", resty.MethodPost, "/conversations", nil, body)
	return r.Data, r.Err()
}

// DeleteConversation removes one conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return call[Empty](ctx, c, "DeleteConversation", resty.MethodDelete, "/conversations/{id}",
		map[string]string{"id": id}, nil).Err()
}

// DeleteAllConversations removes every conversation of the user.
func (c *Client) DeleteAllConversations(ctx context.Context) error {
	return call[Empty](ctx, c, "DeleteAllConversations", resty.MethodDelete, "/conversations", nil, nil).Err()
}

// ListMessages returns the committed messages of a conversation.
func (c *Client) ListMessages(ctx context.Context, id string) ([]model.Message, error) {
	r := call[model.MessagesResponse](ctx, c, "ListMessages", resty.MethodGet, "/conversations/{id}/messages",
		map[string]string{"id": id}, nil)
	return r.Data.Messages, r.Err()
}

// =============================================================================
// STREAMING
// =============================================================================

// SendMessage posts content to a conversation and returns the raw event-stream
// body. The caller must close it. Cancelling ctx closes the stream.
func (c *Client) SendMessage(ctx context.Context, id, content string) (io.ReadCloser, error) {
	const op = "SendMessage"
	req, err := c.request(ctx, op, c.stream)
	if err != nil {
		return nil, err
	}
	req.SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		SetPathParam("id", id).
		SetBody(map[string]string{"content": content})

	start := time.Now()
	resp, err := req.Post("/conversations/{id}/messages")
	if err != nil {
		c.logger.Printf("STREAM_ERROR | op=%s conversation=%s error=%v", op, id, err)
		return nil, transportError(op, err)
	}
	body := resp.RawBody()
	if body == nil {
		return nil, transportError(op, errors.New("response has no body"))
	}
	c.logger.Printf("STREAM_OPEN | conversation=%s status=%d ttfb=%v",
		id, resp.StatusCode(), time.Since(start).Round(time.Millisecond))

	if !resp.IsSuccess() {
		defer body.Close()
		data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBodySize))
		return nil, applicationError(op, resp.StatusCode(), data)
	}
	return body, nil
}
