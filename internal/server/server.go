// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultAddr is the address the CLI dev server listens on. It matches the
// client's default base URL.
const DefaultAddr = "127.0.0.1:8000"

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// ReplyFunc produces the assistant reply for a user message.
type ReplyFunc func(content string) string

// DefaultReply answers with a short acknowledgement of the prompt.
func DefaultReply(content string) string {
	return "Hello from the rigchat dev backend. You said: " + content
}

// Options configures a Server.
type Options struct {
	// Logger receives request and stream lines. Nil discards them.
	Logger *log.Logger

	// Delay is the pause between streamed words.
	Delay time.Duration

	// Reply builds the streamed answer. Nil uses DefaultReply.
	Reply ReplyFunc

	// TruncateAfter, when positive, ends every stream after that many
	// words without a done event.
	TruncateAfter int

	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

// Server is an in-memory chat backend.
type Server struct {
	opts   Options
	store  *memStore
	engine *gin.Engine
	logger *log.Logger
	now    func() time.Time
}

// New builds a Server with its routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Reply == nil {
		opts.Reply = DefaultReply
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		opts:   opts,
		store:  newMemStore(opts.Now),
		engine: gin.New(),
		logger: opts.Logger,
		now:    opts.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.Use(recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody("Not found"))
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	auth.POST("/login", s.handleLogin)
	auth.POST("/register", s.handleRegister)
	auth.POST("/google", s.handleGoogle)
	auth.POST("/forgot-password", s.handleForgotPassword)
	auth.POST("/reset-password", s.handleResetPassword)

	protected := r.Group("/", authMiddleware(s.store, s.logger))
	protected.POST("/auth/logout", s.handleLogout)

	protected.GET("/user/profile", s.handleProfile)
	protected.PUT("/user/profile", s.handleUpdateProfile)
	protected.PUT("/user/password", s.handleUpdatePassword)
	protected.GET("/user/export", s.handleExport)
	protected.DELETE("/user/delete", s.handleDeleteAccount)

	protected.GET("/conversations", s.handleListConversations)
	protected.POST("/conversations", s.handleCreateConversation)
	protected.DELETE("/conversations", s.handleDeleteAllConversations)
	protected.DELETE("/conversations/:id", s.handleDeleteConversation)
	protected.GET("/conversations/:id/messages", s.handleListMessages)
	protected.POST("/conversations/:id/messages", s.handleSendMessage)
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Printf("SERVER_START | addr=%s", ln.Addr())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.logger.Printf("SERVER_STOP | addr=%s", ln.Addr())
	if err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
