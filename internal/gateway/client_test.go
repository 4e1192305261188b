// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

func newTestServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, New(srv.URL, StaticToken("tok-123"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// ENVELOPE AND ERROR TESTS
// =============================================================================

func TestClient_AttachesBearerToken(t *testing.T) {
	var auth, ua string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		ua = r.Header.Get("User-Agent")
		writeJSON(w, http.StatusOK, map[string]any{"conversations": []any{}})
	})

	_, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", auth)
	assert.Equal(t, UserAgent, ua)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	var auth string
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, model.AuthResponse{Token: "new"})
	})

	c := New(srv.URL, StaticToken(""))
	resp, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "new", resp.Token)
	assert.Empty(t, auth)
}

func TestClient_ApplicationErrorUsesBackendMessage(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	})

	_, err := c.Login(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindApplication, apiErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", err.Error())
	assert.Equal(t, "Login", apiErr.Op)
	assert.False(t, IsTransport(err))
}

func TestClient_ApplicationErrorFallback(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>oops</html>"))
	})

	_, err := c.Profile(context.Background())
	require.Error(t, err)
	assert.Equal(t, DefaultErrorMessage, err.Error())
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, nil)
	_, err := c.ListConversations(context.Background())
	require.Error(t, err)
	assert.Equal(t, NetworkErrorMessage, err.Error())
	assert.True(t, IsTransport(err))
	assert.Zero(t, StatusCode(err))
}

func TestClient_UndecodableSuccessIsTransport(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	_, err := c.ListConversations(context.Background())
	assert.True(t, IsTransport(err))
}

func TestClient_EmptySuccessBody(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/logout", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.Logout(context.Background()))
}

// =============================================================================
// ENDPOINT TESTS
// =============================================================================

func TestClient_ConversationEndpoints(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	var calls []string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.EscapedPath())
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/conversations":
			writeJSON(w, http.StatusOK, map[string]any{"conversations": []model.Conversation{
				{ID: "c1", Title: "First", CreatedAt: now, UpdatedAt: now},
			}})
		case r.Method == http.MethodPost && r.URL.Path == "/conversations":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusOK, model.Conversation{ID: "c2", Title: body["title"]})
		case r.Method == http.MethodGet && r.URL.Path == "/conversations/c 1/messages":
			writeJSON(w, http.StatusOK, map[string]any{"messages": []model.Message{
				{ID: "m1", ConversationID: "c 1", Role: model.RoleUser, Content: "hi"},
			}})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	convs, err := c.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "First", convs[0].Title)
	assert.True(t, convs[0].UpdatedAt.Equal(now))

	created, err := c.CreateConversation(ctx, "Plans")
	require.NoError(t, err)
	assert.Equal(t, "c2", created.ID)
	assert.Equal(t, "Plans", created.Title)

	msgs, err := c.ListMessages(ctx, "c 1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)

	require.NoError(t, c.DeleteConversation(ctx, "c1"))
	require.NoError(t, c.DeleteAllConversations(ctx))

	assert.Equal(t, []string{
		"GET /conversations",
		"POST /conversations",
		"GET /conversations/c%201/messages",
		"DELETE /conversations/c1",
		"DELETE /conversations",
	}, calls)
}

func TestClient_UserEndpoints(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /user/profile":
			writeJSON(w, http.StatusOK, model.User{ID: "u1", Name: "Test User"})
		case "PUT /user/profile":
			var upd map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&upd))
			_, hasAvatar := upd["avatar"]
			assert.False(t, hasAvatar, "nil fields must be omitted")
			writeJSON(w, http.StatusOK, model.User{ID: "u1", Name: upd["name"]})
		case "PUT /user/password":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["currentPassword"] != "old" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Current password is incorrect"})
				return
			}
			w.WriteHeader(http.StatusOK)
		case "GET /user/export":
			writeJSON(w, http.StatusOK, model.ExportData{Conversations: []model.Conversation{{ID: "c1"}}})
		case "DELETE /user/delete":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	u, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Test User", u.Name)

	name := "Renamed"
	u, err = c.UpdateProfile(ctx, model.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", u.Name)

	assert.EqualError(t, c.UpdatePassword(ctx, "bad", "new"), "Current password is incorrect")
	assert.NoError(t, c.UpdatePassword(ctx, "old", "new"))

	export, err := c.ExportData(ctx)
	require.NoError(t, err)
	assert.Len(t, export.Conversations, 1)

	assert.NoError(t, c.DeleteAccount(ctx))
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestClient_SendMessageStreams(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations/c1/messages", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["content"])

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"content\":\"Hi\",\"done\":false}\n\n")
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, "data: {\"content\":\"\",\"done\":true}\n\n")
	})

	body, err := c.SendMessage(context.Background(), "c1", "hello")
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"content":"Hi"`)
	assert.Contains(t, string(raw), `"done":true`)
}

func TestClient_SendMessageRejected(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Conversation not found"})
	})

	body, err := c.SendMessage(context.Background(), "missing", "hello")
	assert.Nil(t, body)
	require.Error(t, err)
	assert.Equal(t, "Conversation not found", err.Error())
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestClient_SendMessageAcceptsAny2xx(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "data: {\"content\":\"\",\"done\":true}\n\n")
	})

	body, err := c.SendMessage(context.Background(), "c1", "hello")
	require.NoError(t, err)
	defer body.Close()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"done":true`)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	var hits atomic.Int32
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"conversations": []any{}})
	})
	c.WithRateLimit(0.001, 1)

	_, err := c.ListConversations(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListConversations(ctx)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestCall_Envelope(t *testing.T) {
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			writeJSON(w, http.StatusOK, model.User{ID: "u1"})
		case "/empty":
			// Void calls ignore whatever the backend sends.
			writeJSON(w, http.StatusOK, []int{1, 2})
		default:
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "nope"})
		}
	})
	ctx := context.Background()

	ok := call[model.User](ctx, c, "Test", http.MethodGet, "/ok", nil, nil)
	assert.True(t, ok.Success)
	assert.Equal(t, "u1", ok.Data.ID)
	assert.NoError(t, ok.Err())

	assert.NoError(t, call[Empty](ctx, c, "Test", http.MethodGet, "/empty", nil, nil).Err())

	bad := call[model.User](ctx, c, "Test", http.MethodGet, "/denied", nil, nil)
	assert.False(t, bad.Success)
	assert.Equal(t, "nope", bad.Error)
	var apiErr *APIError
	require.ErrorAs(t, bad.Err(), &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	raw, err := json.Marshal(bad)
	require.NoError(t, err)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, "nope", envelope["error"])

	srv.Close()
	down := call[model.User](ctx, c, "Test", http.MethodGet, "/ok", nil, nil)
	assert.False(t, down.Success)
	assert.Equal(t, NetworkErrorMessage, down.Error)
	assert.True(t, IsTransport(down.Err()))
}

func TestResult_ErrWithoutCause(t *testing.T) {
	decoded := Result[int]{Success: false}
	assert.EqualError(t, decoded.Err(), DefaultErrorMessage)
	assert.NoError(t, Result[int]{Success: true}.Err())
}
