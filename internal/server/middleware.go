// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Context keys set by authMiddleware.
const (
	ctxEmail = "rigchat.email"
	ctxToken = "rigchat.token"
)

// ============================================================================
// Logging
// ============================================================================

// loggingMiddleware logs one line per request.
//
// Log format: "2024-01-15 14:30:45 | POST /conversations/x/messages | 200 | 1.234s"
func loggingMiddleware(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Printf("%s | %s %s | %d | %.3fs",
			start.Format("2006-01-02 15:04:05"),
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start).Seconds(),
		)
	}
}

// ============================================================================
// Auth
// ============================================================================

// authMiddleware resolves the bearer token to an account and rejects the
// request with 401 otherwise.
func authMiddleware(store *memStore, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			deny(c, logger, "missing_auth_header")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			deny(c, logger, "invalid_auth_format")
			return
		}
		email, ok := store.userForToken(token)
		if !ok {
			deny(c, logger, "invalid_token")
			return
		}
		c.Set(ctxEmail, email)
		c.Set(ctxToken, token)
		c.Next()
	}
}

func deny(c *gin.Context, logger *log.Logger, reason string) {
	logger.Printf("AUTH_DENIED | ip=%s reason=%s", c.ClientIP(), reason)
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Not logged in"))
}

// ============================================================================
// Recovery
// ============================================================================

// recoveryMiddleware turns a handler panic into a 500 with a JSON error.
func recoveryMiddleware(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Printf("PANIC_RECOVERED | method=%s path=%s error=%v\n%s",
					c.Request.Method, c.Request.URL.Path, err, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Internal Server Error"))
			}
		}()
		c.Next()
	}
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}
