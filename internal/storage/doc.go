// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local conversation cache for rigchat.
//
// The backend stays the source of truth. The cache keeps the last known
// conversation list and committed messages in SQLite so history can be
// listed and searched without a round trip, and so an interrupted session
// can be reviewed offline.
//
// # Usage
//
//	cache, err := storage.Open(filepath.Join(dir, "cache.db"))
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	cache.Sync(ctx, convs)
//	hits, _ := cache.Search(ctx, "tokyo")
package storage
