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
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/insight/services/insight/session"
	"github.com/AleutianAI/insight/services/insight/store"
)

// runDiagnostics reports store connectivity, the session key
// footprint, and the remaining TTL per session. Useful when sessions
// seem to vanish early: a skewed TTL shows up immediately here.
func runDiagnostics(cmd *cobra.Command, args []string) error {
	kv, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer kv.Close()

	start := time.Now()
	if err := kv.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("store ping failed: %w", err)
	}
	fmt.Printf("Store: %s (ping %s)\n", config.Store.Backend, time.Since(start).Round(time.Millisecond))

	keys, err := kv.Scan(cmd.Context(), session.MetaKeyPrefix)
	if err != nil {
		return err
	}

	perSession := make(map[string]int)
	versionKeys := 0
	for _, key := range keys {
		sid := session.SessionIDFromKey(key)
		if sid == "" {
			continue
		}
		perSession[sid]++
		if session.IsVersionKey(key) {
			versionKeys++
		}
	}
	fmt.Printf("Keys: %d total, %d version payloads, %d sessions\n",
		len(keys), versionKeys, len(perSession))

	if len(perSession) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tKEYS\tMETA TTL\tMIN TTL\tSKEW")
	for sid, count := range perSession {
		metaTTL, minTTL, err := sessionTTLs(cmd, kv, sid, keys)
		if err != nil {
			fmt.Fprintf(w, "%s\t%d\t-\t-\t%s\n", sid, count, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			sid, count,
			metaTTL.Round(time.Second),
			minTTL.Round(time.Second),
			(metaTTL - minTTL).Round(time.Second))
	}
	return w.Flush()
}

// sessionTTLs returns the metadata key's TTL and the minimum TTL over
// all of the session's keys. The two should match; drift means a
// refresh batch partially failed.
func sessionTTLs(cmd *cobra.Command, kv store.KV, sid string,
	allKeys []string) (metaTTL, minTTL time.Duration, err error) {

	minTTL = -1
	for _, key := range allKeys {
		if session.SessionIDFromKey(key) != sid {
			continue
		}
		d, err := kv.TTL(cmd.Context(), key)
		if err != nil {
			return 0, 0, fmt.Errorf("ttl of %s: %w", key, err)
		}
		if session.IsMetaKey(key) {
			metaTTL = d
		}
		if minTTL < 0 || d < minTTL {
			minTTL = d
		}
	}
	return metaTTL, minTTL, nil
}
