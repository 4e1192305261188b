// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/rigchat/internal/model"
)

// Profile returns the signed-in user.
func (c *Client) Profile(ctx context.Context) (model.User, error) {
	r := call[model.User](ctx, c, "Profile", resty.MethodGet, "/user/profile", nil, nil)
	return r.Data, r.Err()
}

// UpdateProfile changes name and/or avatar.
func (c *Client) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (model.User, error) {
	r := call[model.User](ctx, c, "UpdateProfile", resty.MethodPut, "/user/profile", nil, update)
	return r.Data, r.Err()
}

// UpdatePassword changes the account password.
func (c *Client) UpdatePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return call[Empty](ctx, c, "UpdatePassword", resty.MethodPut, "/user/password", nil, body).Err()
}

// ExportData downloads every conversation and message the account owns.
func (c *Client) ExportData(ctx context.Context) (model.ExportData, error) {
	r := call[model.ExportData](ctx, c, "ExportData", resty.MethodGet, "/user/export", nil, nil)
	return r.Data, r.Err()
}

// DeleteAccount permanently removes the account.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return call[Empty](ctx, c, "DeleteAccount", resty.MethodDelete, "/user/delete", nil, nil).Err()
}
