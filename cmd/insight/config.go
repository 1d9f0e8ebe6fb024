// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the insight server configuration, loaded from an optional
// YAML file and overridable through INSIGHT_* environment variables.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Session SessionConfig `yaml:"session"`
	LLM     LLMConfig     `yaml:"llm"`
	Upload  UploadConfig  `yaml:"upload"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port  int  `yaml:"port"`
	Debug bool `yaml:"debug"`
}

type StoreConfig struct {
	// Backend selects "badger" (embedded) or "redis".
	Backend string `yaml:"backend"`

	// Path is the BadgerDB directory. Ignored for Redis.
	Path string `yaml:"path"`

	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	// TTLMinutes is the sliding session lifetime. Every key a session
	// owns expires this long after its last access.
	TTLMinutes int `yaml:"ttl_minutes"`
}

type LLMConfig struct {
	// Enabled wires the conversational layer. The backend itself is
	// selected by LLM_BACKEND ("openai" or "ollama").
	Enabled bool `yaml:"enabled"`

	// RPS and Burst rate-limit outbound LLM calls. Zero disables
	// limiting.
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type UploadConfig struct {
	MaxBytes  int64 `yaml:"max_bytes"`
	MaxTables int   `yaml:"max_tables"`
	MaxRows   int   `yaml:"max_rows"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// DefaultConfig returns the configuration used when no config file
// exists: embedded BadgerDB under ./data, chat enabled, 30 minute
// sessions.
func DefaultConfig() Config {
	return Config{
		Server:  ServerConfig{Port: 8080},
		Store:   StoreConfig{Backend: "badger", Path: "data/insight"},
		Session: SessionConfig{TTLMinutes: 30},
		LLM:     LLMConfig{Enabled: true, RPS: 2, Burst: 4},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig reads the YAML config at path, falling back to defaults
// when the file does not exist, then applies environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment are a complete configuration.
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INSIGHT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INSIGHT_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("INSIGHT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv("INSIGHT_SESSION_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Session.TTLMinutes = n
		}
	}
	if v := os.Getenv("INSIGHT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
