// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// AUTH
// =============================================================================

// Login exchanges email and password for a session.
func (c *Client) Login(ctx context.Context, email, password string) (model.AuthResponse, error) {
	r := call[model.AuthResponse](ctx, c, "Login", resty.MethodPost, "/auth/login", nil,
		model.LoginRequest{Email: email, Password: password})
	return r.Data, r.Err()
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error) {
	r := call[model.AuthResponse](ctx, c, "Register", resty.MethodPost, "/auth/register", nil, req)
	return r.Data, r.Err()
}

// GoogleAuth exchanges a Google ID credential for a session.
func (c *Client) GoogleAuth(ctx context.Context, credential string) (model.AuthResponse, error) {
	r := call[model.AuthResponse](ctx, c, "GoogleAuth", resty.MethodPost, "/auth/google", nil,
		model.GoogleAuthRequest{Credential: credential})
	return r.Data, r.Err()
}

// Logout ends the session on the backend. Callers clear local state
// regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return call[Empty](ctx, c, "Logout", resty.MethodPost, "/auth/logout", nil, nil).Err()
}

// ForgotPassword asks the backend to mail a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return call[Empty](ctx, c, "ForgotPassword", resty.MethodPost, "/auth/forgot-password", nil, body).Err()
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return call[Empty](ctx, c, "ResetPassword", resty.MethodPost, "/auth/reset-password", nil, body).Err()
}
