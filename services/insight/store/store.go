// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store defines the key-value TTL store contract the session
// engine builds on, with backends under store/badger (embedded) and
// store/redis (networked).
//
// The contract is deliberately small: byte values, per-key expiration,
// batch TTL refresh, prefix scans. There are no multi-key transactions;
// the session engine compensates with a strict write ordering instead.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all backends.
var (
	// ErrKeyNotFound indicates the key is absent or has expired.
	ErrKeyNotFound = errors.New("key not found")

	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("storage unavailable")
)

// KV is a key-value store with per-key expiration.
//
// Implementations must be safe for concurrent use. Every method that
// touches the backend takes a context; a context error aborts the call.
type KV interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key with the given TTL. A zero TTL means
	// no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int, error)

	// Refresh resets the TTL on every given key in one batch and
	// returns the keys that were absent (already expired). A non-nil
	// error means the batch itself failed; missing keys alone are not
	// an error.
	Refresh(ctx context.Context, ttl time.Duration, keys ...string) (missing []string, err error)

	// TTL reports the remaining lifetime of key, or ErrKeyNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Scan returns all keys with the given prefix.
	Scan(ctx context.Context, prefix string) ([]string, error)

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
