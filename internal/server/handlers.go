// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// AUTH
// =============================================================================

func (s *Server) handleLogin(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, errorBody("Email and password are required"))
		return
	}
	resp, err := s.store.login(req.Email, req.Password)
	if err != nil {
		s.logger.Printf("LOGIN_FAILED | email=%s", req.Email)
		c.JSON(http.StatusUnauthorized, errorBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRegister(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" || req.Name == "" {
		c.JSON(http.StatusBadRequest, errorBody("Email, password and name are required"))
		return
	}
	resp, err := s.store.register(req)
	if err != nil {
		c.JSON(http.StatusConflict, errorBody(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleGoogle(c *gin.Context) {
	var req model.GoogleAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Credential == "" {
		c.JSON(http.StatusBadRequest, errorBody("Missing Google credential"))
		return
	}
	c.JSON(http.StatusOK, s.store.googleLogin())
}

func (s *Server) handleLogout(c *gin.Context) {
	s.store.logout(c.GetString(ctxToken))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, errorBody("Email is required"))
		return
	}
	s.logger.Printf("PASSWORD_RESET_REQUESTED | email=%s", req.Email)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, errorBody("Token and password are required"))
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// USER
// =============================================================================

func (s *Server) handleProfile(c *gin.Context) {
	user, err := s.store.profile(c.GetString(ctxEmail))
	if err != nil {
		c.JSON(http.StatusNotFound, errorBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var upd model.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid profile update"))
		return
	}
	user, err := s.store.updateProfile(c.GetString(ctxEmail), upd)
	if err != nil {
		c.JSON(http.StatusNotFound, errorBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleUpdatePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, errorBody("New password is required"))
		return
	}
	if err := s.store.updatePassword(c.GetString(ctxEmail), req.CurrentPassword, req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExport(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.export(c.GetString(ctxEmail)))
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	email := c.GetString(ctxEmail)
	s.store.deleteAccount(email)
	s.logger.Printf("ACCOUNT_DELETED | email=%s", email)
	c.Status(http.StatusNoContent)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func (s *Server) handleListConversations(c *gin.Context) {
	c.JSON(http.StatusOK, model.ConversationsResponse{Conversations: s.store.listConversations(c.GetString(ctxEmail))})
}

func (s *Server) handleCreateConversation(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	// The title is optional and so is the body.
	_ = c.ShouldBindJSON(&req)
	c.JSON(http.StatusCreated, s.store.createConversation(c.GetString(ctxEmail), req.Title))
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	if err := s.store.deleteConversation(c.GetString(ctxEmail), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, errorBody(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteAllConversations(c *gin.Context) {
	s.store.deleteAllConversations(c.GetString(ctxEmail))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListMessages(c *gin.Context) {
	msgs, err := s.store.listMessages(c.GetString(ctxEmail), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, model.MessagesResponse{Messages: msgs})
}

// =============================================================================
// STREAMING
// =============================================================================

// handleSendMessage stores the user message and streams the reply one word
// per event, ending with a done event. The reply is stored only when the
// stream completes.
func (s *Server) handleSendMessage(c *gin.Context) {
	email, id := c.GetString(ctxEmail), c.Param("id")
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, errorBody("Message content is required"))
		return
	}

	userMsg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: id,
		Role:           model.RoleUser,
		Content:        req.Content,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.appendMessage(email, userMsg); err != nil {
		c.JSON(http.StatusNotFound, errorBody(err.Error()))
		return
	}

	reply := s.opts.Reply(req.Content)
	chunks := strings.SplitAfter(reply, " ")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ctx := c.Request.Context()
	start := time.Now()
	for i, chunk := range chunks {
		if i > 0 && s.opts.Delay > 0 {
			timer := time.NewTimer(s.opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Printf("STREAM_ABORTED | conversation=%s sent=%d", id, i)
				return
			case <-timer.C:
			}
		}
		if err := s.writeChunk(c, model.StreamChunk{Content: chunk}); err != nil {
			s.logger.Printf("STREAM_WRITE_FAILED | conversation=%s error=%v", id, err)
			return
		}
		if s.opts.TruncateAfter > 0 && i+1 >= s.opts.TruncateAfter {
			s.logger.Printf("STREAM_TRUNCATED | conversation=%s sent=%d", id, i+1)
			return
		}
	}
	if err := s.writeChunk(c, model.StreamChunk{Done: true}); err != nil {
		return
	}

	assistant := model.NewAssistantMessage(id, reply, s.now().UTC())
	if err := s.store.appendMessage(email, assistant); err != nil {
		s.logger.Printf("REPLY_DROPPED | conversation=%s error=%v", id, err)
	}
	s.logger.Printf("STREAM_DONE | conversation=%s chunks=%d duration=%.3fs",
		id, len(chunks), time.Since(start).Seconds())
}

// writeChunk writes one data line and flushes it.
func (s *Server) writeChunk(c *gin.Context, chunk model.StreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
