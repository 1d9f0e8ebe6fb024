// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/insight/services/insight/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetGetDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "session:abc:meta")
	assert.ErrorIs(t, err, store.ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "session:abc:meta", []byte(`{"v":1}`), time.Minute))

	got, err := s.Get(ctx, "session:abc:meta")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), got)

	n, err := s.Delete(ctx, "session:abc:meta", "session:abc:ghost")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "session:abc:meta")
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func TestStore_TTLAndExpiry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))
	d, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), d.Seconds(), 2)

	// Keys written with a sub-second TTL become invisible once expired.
	require.NoError(t, s.Set(ctx, "short", []byte("v"), 1*time.Second))
	time.Sleep(1100 * time.Millisecond)
	_, err = s.Get(ctx, "short")
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
	_, err = s.TTL(ctx, "short")
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func TestStore_Refresh(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 5*time.Second))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 5*time.Second))

	missing, err := s.Refresh(ctx, time.Hour, "a", "b", "ghost")
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, missing)

	for _, key := range []string{"a", "b"} {
		d, err := s.TTL(ctx, key)
		require.NoError(t, err)
		assert.Greater(t, d, 30*time.Minute, "key %s should carry the refreshed TTL", key)
	}

	// Values must survive the refresh rewrite.
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}

func TestStore_Scan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"session:s1:meta", "session:s1:graph", "session:s2:meta"} {
		require.NoError(t, s.Set(ctx, key, []byte("x"), time.Minute))
	}

	keys, err := s.Scan(ctx, "session:s1:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"session:s1:meta", "session:s1:graph"}, keys)

	keys, err = s.Scan(ctx, "session:nope:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStore_ContextCancelled(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Set(ctx, "k", nil, 0), context.Canceled)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestStore_Ping(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
