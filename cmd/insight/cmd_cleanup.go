// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/insight/services/insight/session"
)

// runCleanup removes session keys whose metadata key has expired.
// The meta key is the session's existence marker; version payloads
// that outlive it (a partial TTL refresh can cause this) are orphans
// and will never be read again.
func runCleanup(cmd *cobra.Command, args []string) error {
	kv, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer kv.Close()

	keys, err := kv.Scan(cmd.Context(), session.MetaKeyPrefix)
	if err != nil {
		return err
	}

	live := make(map[string]bool)
	for _, key := range keys {
		if session.IsMetaKey(key) {
			live[session.SessionIDFromKey(key)] = true
		}
	}

	var orphans []string
	for _, key := range keys {
		sid := session.SessionIDFromKey(key)
		if sid == "" || live[sid] {
			continue
		}
		orphans = append(orphans, key)
	}

	if len(orphans) == 0 {
		fmt.Println("No orphaned keys found.")
		return nil
	}
	if dryRunFlag {
		fmt.Printf("Would delete %d orphaned keys:\n", len(orphans))
		for _, key := range orphans {
			fmt.Println("  " + key)
		}
		return nil
	}

	n, err := kv.Delete(cmd.Context(), orphans...)
	if err != nil {
		return fmt.Errorf("delete orphaned keys: %w", err)
	}
	fmt.Printf("Deleted %d orphaned keys.\n", n)
	return nil
}
