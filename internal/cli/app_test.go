// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/server"
	"github.com/jeranaias/rigchat/internal/session"
)

// =============================================================================
// HARNESS
// =============================================================================

// harness runs commands against an in-memory backend with an isolated home
// directory and filesystem.
type harness struct {
	t    *testing.T
	url  string
	fs   afero.Fs
	home string
}

func newHarness(t *testing.T, opts server.Options) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvSessionKey, "")
	t.Setenv(config.EnvNoColor, "")

	ts := httptest.NewServer(server.New(opts).Handler())
	t.Cleanup(ts.Close)
	return &harness{t: t, url: ts.URL, fs: afero.NewMemMapFs(), home: home}
}

type result struct {
	stdout string
	stderr string
	err    error
}

func (h *harness) run(stdin string, argv ...string) result {
	h.t.Helper()
	cmd, args := Parse(append([]string{"--api", h.url}, argv...))

	var stdout, stderr bytes.Buffer
	app, err := NewApp(args, Env{
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
		FS:     h.fs,
		Now:    time.Now,
	})
	require.NoError(h.t, err)
	defer app.Close()

	err = app.Run(context.Background(), cmd)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func (h *harness) login() {
	h.t.Helper()
	res := h.run(server.DemoPassword+"\n", "login", "--email", server.DemoEmail, "--password-stdin")
	require.NoError(h.t, res.err, res.stderr)
}

// newConversation creates a conversation and returns its ID.
func (h *harness) newConversation(title string) string {
	h.t.Helper()
	res := h.run("", "--json", "conversations", "new", title)
	require.NoError(h.t, res.err, res.stderr)
	var conv model.Conversation
	require.NoError(h.t, json.Unmarshal([]byte(res.stdout), &conv))
	return conv.ID
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin_WhoamiAndLogout(t *testing.T) {
	h := newHarness(t, server.Options{})

	h.login()

	res := h.run("", "whoami")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, server.DemoName)
	assert.Contains(t, res.stdout, server.DemoEmail)

	res = h.run("", "--json", "whoami")
	require.NoError(t, res.err)
	var user model.User
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &user))
	assert.Equal(t, server.DemoEmail, user.Email)

	res = h.run("", "logout")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Signed out")

	res = h.run("", "whoami")
	require.ErrorIs(t, res.err, session.ErrNoSession)
	assert.Equal(t, ExitAuthError, ExitCode(res.err))

	res = h.run("", "logout")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Not signed in.")
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t, server.Options{})

	res := h.run("wrong\n", "login", "--email", server.DemoEmail, "--password-stdin")
	require.Error(t, res.err)
	assert.Equal(t, ExitAuthError, ExitCode(res.err))
	assert.Equal(t, "Invalid email or password", res.err.Error())
}

func TestLogin_MissingPassword(t *testing.T) {
	h := newHarness(t, server.Options{})

	res := h.run("", "login", "--email", server.DemoEmail, "--password-stdin")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
}

func TestRegister_ThenWhoami(t *testing.T) {
	h := newHarness(t, server.Options{})

	res := h.run("s3cret\n", "register", "--name", "Ada", "--email", "ada@example.com", "--password-stdin")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Account created as ada@example.com")

	res = h.run("", "whoami")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Ada")
}

func TestCommandsRequireSession(t *testing.T) {
	h := newHarness(t, server.Options{})

	for _, argv := range [][]string{
		{"conversations", "list"},
		{"ask", "hello"},
		{"chat"},
		{"profile"},
	} {
		res := h.run("", argv...)
		assert.ErrorIs(t, res.err, session.ErrNoSession, argv)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, server.Options{})

	res := h.run("", "frobnicate")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestConversations_Lifecycle(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()

	res := h.run("", "conversations", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No conversations yet.")

	id := h.newConversation("Trip ideas")

	res = h.run("", "conversations", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Today")
	assert.Contains(t, res.stdout, "Trip ideas")
	assert.Contains(t, res.stdout, id)

	res = h.run("", "conversations", "show", id)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No messages yet.")

	res = h.run("", "conversations", "delete", id)
	require.NoError(t, res.err)

	res = h.run("", "--json", "conversations", "list")
	require.NoError(t, res.err)
	var convs []model.Conversation
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &convs))
	assert.Empty(t, convs)
}

func TestConversations_DeleteAllNeedsConfirm(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()
	h.newConversation("one")
	h.newConversation("two")

	res := h.run("", "conversations", "delete-all")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))

	res = h.run("", "conversations", "delete-all", "--confirm")
	require.NoError(t, res.err)

	res = h.run("", "conversations", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No conversations yet.")
}

func TestConversations_ShowUnknownIsNotFound(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()

	res := h.run("", "conversations", "show", "nope")
	assert.Equal(t, ExitNotFoundError, ExitCode(res.err))
}

// =============================================================================
// ASK / CHAT
// =============================================================================

func TestAsk_StreamsReplyAndCaches(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()

	res := h.run("", "ask", "plan", "a", "trip", "to", "Lisbon")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, server.DefaultReply("plan a trip to Lisbon")+"\n", res.stdout)

	res = h.run("", "--json", "conversations", "list")
	require.NoError(t, res.err)
	var convs []model.Conversation
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "plan a trip to Lisbon", convs[0].Title)

	res = h.run("", "conversations", "show", convs[0].ID)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "you> plan a trip to Lisbon")
	assert.Contains(t, res.stdout, "assistant> "+server.DefaultReply("plan a trip to Lisbon"))

	// The reconciler wrote through to the cache, which search reads.
	res = h.run("", "conversations", "search", "LISBON")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "plan a trip to Lisbon")

	res = h.run("", "conversations", "search", "madrid")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No cached conversations match")
}

func TestAsk_FromStdinIntoExistingConversation(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()
	id := h.newConversation("notes")

	res := h.run("what is up\n", "--json", "ask", "--conversation", id)
	require.NoError(t, res.err, res.stderr)
	var reply model.Message
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &reply))
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, id, reply.ConversationID)
	assert.Equal(t, server.DefaultReply("what is up"), reply.Content)
}

func TestAsk_TruncatedReplyKeepsPartial(t *testing.T) {
	h := newHarness(t, server.Options{
		TruncateAfter: 2,
		Reply:         func(string) string { return "alpha beta gamma" },
	})
	h.login()

	res := h.run("", "ask", "hi")
	require.Error(t, res.err)
	assert.Equal(t, ExitInterrupted, ExitCode(res.err))
	assert.Equal(t, "alpha beta \n", res.stdout)
	assert.Contains(t, res.stderr, "Reply interrupted")
}

func TestAsk_NothingToAsk(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()

	res := h.run("   \n", "ask")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
}

func TestChat_PipedSession(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()

	script := strings.Join([]string{
		"hello there",
		"/list",
		"/new Second thread",
		"/list",
		"/switch 2",
		"/history",
		"/bogus",
		"/quit",
		"never sent",
	}, "\n") + "\n"

	res := h.run(script, "chat")
	require.NoError(t, res.err, res.stderr)

	out := res.stdout
	assert.Contains(t, out, "assistant> "+server.DefaultReply("hello there"))
	assert.Contains(t, out, "Today")
	assert.Contains(t, out, "Second thread")
	assert.Contains(t, out, "Switched to hello there")
	assert.Contains(t, out, "you> hello there")
	assert.NotContains(t, out, "never sent")
	assert.Contains(t, res.stderr, "unknown command /bogus")

	res = h.run("", "--json", "conversations", "list")
	require.NoError(t, res.err)
	var convs []model.Conversation
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &convs))
	assert.Len(t, convs, 2)
}

func TestChat_ResumeConversation(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()
	id := h.newConversation("resume me")

	res := h.run("first\nsecond\n", "chat", "--conversation", id)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, server.DefaultReply("second"))

	res = h.run("", "--json", "conversations", "list")
	require.NoError(t, res.err)
	var convs []model.Conversation
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, id, convs[0].ID)
}

// =============================================================================
// PROFILE
// =============================================================================

func TestProfile_UpdateExportDelete(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()

	res := h.run("", "profile", "update", "--name", "Renamed")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Renamed")

	res = h.run("", "profile", "update")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))

	res = h.run("", "ask", "export me")
	require.NoError(t, res.err)

	out := filepath.Join(h.home, "export.json")
	res = h.run("", "profile", "export", "--out", out)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Exported 1 conversations and 2 messages")
	data, err := afero.ReadFile(h.fs, out)
	require.NoError(t, err)
	var export model.ExportData
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Len(t, export.Messages, 2)

	res = h.run("", "profile", "delete")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))

	res = h.run("", "profile", "delete", "--confirm")
	require.NoError(t, res.err)

	res = h.run("", "whoami")
	assert.ErrorIs(t, res.err, session.ErrNoSession)
}

func TestProfile_ExportMarkdown(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()
	require.NoError(t, h.run("", "ask", "hello markdown").err)

	res := h.run("", "profile", "export", "--format", "md")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "# rigchat export")
	assert.Contains(t, res.stdout, "## hello markdown")
	assert.Contains(t, res.stdout, server.DefaultReply("hello markdown"))

	dir := filepath.Join(h.home, "exports")
	require.NoError(t, h.fs.MkdirAll(dir, 0o700))
	res = h.run("", "profile", "export", "--format", "markdown", "--out", dir)
	require.NoError(t, res.err)
	entries, err := afero.ReadDir(h.fs, dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".md"))

	res = h.run("", "profile", "export", "--format", "html")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
}

func TestProfile_PasswordChange(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()

	res := h.run("wrong\nnext-pass\n", "profile", "password")
	require.Error(t, res.err)

	res = h.run(server.DemoPassword+"\nnext-pass\n", "profile", "password")
	require.NoError(t, res.err, res.stderr)

	h.run("", "logout")
	res = h.run("next-pass\n", "login", "--email", server.DemoEmail, "--password-stdin")
	require.NoError(t, res.err)
}

func TestProfile_SettingsChatHistory(t *testing.T) {
	h := newHarness(t, server.Options{})
	h.login()

	res := h.run("", "profile", "settings")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Chat history")
	assert.NotContains(t, res.stdout, "off")

	res = h.run("", "ask", "plan a trip to Lisbon")
	require.NoError(t, res.err, res.stderr)

	// Turning history off forgets the local copy.
	res = h.run("", "profile", "settings", "--chat-history", "off")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Settings saved")

	res = h.run("", "--json", "profile", "settings")
	require.NoError(t, res.err, res.stderr)
	var settings model.UserSettings
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &settings))
	assert.False(t, settings.ChatHistory)
	assert.True(t, settings.DataCollection)

	res = h.run("", "conversations", "search", "lisbon")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "chat history is off")

	// Nothing is written while history is off.
	res = h.run("", "ask", "plan a trip to Lisbon again")
	require.NoError(t, res.err, res.stderr)

	res = h.run("", "profile", "settings", "--chat-history=on")
	require.NoError(t, res.err, res.stderr)
	res = h.run("", "conversations", "search", "lisbon")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "No cached conversations match")

	res = h.run("", "profile", "settings", "--data-collection", "maybe")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
}

func TestForgotAndResetPassword(t *testing.T) {
	h := newHarness(t, server.Options{})

	res := h.run("", "forgot-password", server.DemoEmail)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "reset link")

	res = h.run("", "forgot-password")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))

	res = h.run("", "reset-password")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_SetGetPersistsFileOnly(t *testing.T) {
	h := newHarness(t, server.Options{})

	res := h.run("", "config", "set", "ui.preview_width", "30")
	require.NoError(t, res.err, res.stderr)

	res = h.run("", "config", "get", "ui.preview_width")
	require.NoError(t, res.err)
	assert.Equal(t, "30\n", res.stdout)

	path := filepath.Join(h.home, ".rigchat", "config.toml")
	data, err := afero.ReadFile(h.fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "preview_width = 30")
	// --api is a per-run override and never reaches the file.
	assert.NotContains(t, string(data), h.url)

	res = h.run("", "config", "path")
	require.NoError(t, res.err)
	assert.Equal(t, path+"\n", res.stdout)
}

func TestConfig_SetInvalid(t *testing.T) {
	h := newHarness(t, server.Options{})

	res := h.run("", "config", "set", "ui.preview_width", "5")
	assert.Equal(t, ExitConfigError, ExitCode(res.err))

	res = h.run("", "config", "set", "no.such.key", "1")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))

	res = h.run("", "config", "get")
	assert.Equal(t, ExitUsageError, ExitCode(res.err))
}

func TestConfig_ShowAndKeys(t *testing.T) {
	h := newHarness(t, server.Options{})

	res := h.run("", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "backend.base_url")
	assert.Contains(t, res.stdout, h.url)

	res = h.run("", "config", "keys")
	require.NoError(t, res.err)
	assert.Equal(t, strings.Join(config.Keys(), "\n")+"\n", res.stdout)
}

// =============================================================================
// MISC
// =============================================================================

func TestVersionAndHelp(t *testing.T) {
	h := newHarness(t, server.Options{})

	res := h.run("", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "rigchat version "+Version)

	res = h.run("", "help")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "USAGE:")
}

func TestDevServer_BadFlags(t *testing.T) {
	h := newHarness(t, server.Options{})

	for _, argv := range [][]string{
		{"devserver", "--addr", "nope"},
		{"devserver", "--delay", "soon"},
		{"devserver", "--truncate-after=-1"},
	} {
		res := h.run("", argv...)
		assert.Equal(t, ExitUsageError, ExitCode(res.err), argv)
	}
}

func TestDevServer_StopsOnCancel(t *testing.T) {
	h := newHarness(t, server.Options{})
	cmd, args := Parse([]string{"devserver", "--addr", "127.0.0.1:0"})

	var stdout, stderr bytes.Buffer
	app, err := NewApp(args, Env{Stdin: strings.NewReader(""), Stdout: &stdout, Stderr: &stderr, FS: h.fs})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, cmd) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("devserver did not stop")
	}
	assert.Contains(t, stdout.String(), "listening on")
}
