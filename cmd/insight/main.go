// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command insight starts the versioned data-session server.
//
// Usage:
//
//	go run ./cmd/insight serve
//	go run ./cmd/insight serve --port 9090
//
// With Ollama (for the chat assistant):
//
//	OLLAMA_BASE_URL=http://localhost:11434 OLLAMA_MODEL=llama3 go run ./cmd/insight serve
//
// With Redis instead of the embedded store:
//
//	INSIGHT_STORE_BACKEND=redis REDIS_ADDR=localhost:6379 go run ./cmd/insight serve
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/insight/health
//
//	# Upload a file, creating a session
//	curl -X POST http://localhost:8080/v1/insight/sessions -F file=@sales.csv
//
//	# Apply a tool directly
//	curl -X POST http://localhost:8080/v1/insight/sessions/$SID/tools/filter_rows \
//	  -H "Content-Type: application/json" \
//	  -d '{"parameters": {"column": "price", "op": ">", "value": "100"}}'
//
//	# One chat turn
//	curl -X POST http://localhost:8080/v1/insight/sessions/$SID/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"message": "show rows where price is above 100"}'
package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/insight/pkg/logging"
	"github.com/AleutianAI/insight/services/insight/store"
	badgerstore "github.com/AleutianAI/insight/services/insight/store/badger"
	redisstore "github.com/AleutianAI/insight/services/insight/store/redis"
)

var config Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		config = cfg

		logger, err := logging.New(logging.Config{
			Level:   logging.ParseLevel(config.Logging.Level),
			LogDir:  config.Logging.Dir,
			Service: "insight",
			JSON:    config.Logging.JSON,
		})
		if err != nil {
			return err
		}
		logger.SetDefault()
		return nil
	}
}

// openStore opens the configured KV backend. The caller owns Close.
func openStore(cmd *cobra.Command) (store.KV, error) {
	switch config.Store.Backend {
	case "redis":
		return redisstore.Open(cmd.Context(), redisstore.Config{
			Addr:     config.Store.Redis.Addr,
			Password: config.Store.Redis.Password,
			DB:       config.Store.Redis.DB,
		})
	default:
		return badgerstore.Open(badgerstore.DefaultConfig(config.Store.Path))
	}
}

func sessionTTL() time.Duration {
	return time.Duration(config.Session.TTLMinutes) * time.Minute
}
