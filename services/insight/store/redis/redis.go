// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package redis implements the session KV store on Redis.
//
// Redis is the production backend: sessions survive process restarts
// and multiple Insight replicas can share one session space. TTL
// refresh uses a single pipeline so all of a session's keys get their
// deadline reset in one round trip.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AleutianAI/insight/services/insight/store"
)

// Config holds Redis connection settings.
type Config struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password is optional; empty means no AUTH.
	Password string

	// DB selects the logical Redis database.
	DB int

	// DialTimeout and OpTimeout bound connection setup and individual
	// commands. Zero values fall back to five seconds, matching the
	// socket timeouts the service has always run with.
	DialTimeout time.Duration
	OpTimeout   time.Duration
}

// Store implements store.KV on Redis.
type Store struct {
	client *redis.Client
}

// Open creates a Redis-backed store and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	op := cfg.OpTimeout
	if op <= 0 {
		op = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dial,
		ReadTimeout:  op,
		WriteTimeout: op,
	})
	s := &Store{client: client}
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// Get implements store.KV.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get %s: %v", store.ErrUnavailable, key, err)
	}
	return value, nil
}

// Set implements store.KV.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %v", store.ErrUnavailable, key, err)
	}
	return nil
}

// Delete implements store.KV.
func (s *Store) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: redis del: %v", store.ErrUnavailable, err)
	}
	return int(n), nil
}

// Refresh implements store.KV using one EXPIRE pipeline for the batch.
func (s *Store) Refresh(ctx context.Context, ttl time.Duration, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.BoolCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: redis refresh: %v", store.ErrUnavailable, err)
	}
	var missing []string
	for i, cmd := range cmds {
		if !cmd.Val() {
			missing = append(missing, keys[i])
		}
	}
	return missing, nil
}

// TTL implements store.KV.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: redis ttl %s: %v", store.ErrUnavailable, key, err)
	}
	// go-redis surfaces the TTL sentinels as raw durations: -2
	// nanoseconds for a missing key, -1 for a key without expiration.
	switch d {
	case time.Duration(-2):
		return 0, store.ErrKeyNotFound
	case time.Duration(-1):
		return 0, nil
	}
	return d, nil
}

// Scan implements store.KV with cursor-based SCAN.
func (s *Store) Scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: redis scan %s: %v", store.ErrUnavailable, prefix, err)
	}
	return keys, nil
}

// Ping implements store.KV.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", store.ErrUnavailable, err)
	}
	return nil
}

// Close releases the client's connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
