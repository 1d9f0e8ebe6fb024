// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import "github.com/spf13/cobra"

// --- Global Command Variables ---
var (
	configPath string
	portFlag   int
	debugFlag  bool
	dryRunFlag bool

	rootCmd = &cobra.Command{
		Use:   "insight",
		Short: "A versioned data-session service for conversational table analysis",
		Long: `Insight serves uploaded CSV and Excel data as short-lived sessions.
Every transformation is snapshotted into a git-like version graph, so
any chat turn or tool call can be branched from, reverted, or pruned.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the insight API server",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	// --- Sessions ---
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage live sessions",
	}
	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List all live sessions",
		RunE:  runListSessions, // Defined in cmd_session.go
	}
	deleteSessionCmd = &cobra.Command{
		Use:   "delete [session_id]",
		Short: "Delete a specific session and all of its versions",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteSession, // Defined in cmd_session.go
	}

	// --- Store Maintenance ---
	diagnosticsCmd = &cobra.Command{
		Use:   "diagnostics",
		Short: "Report store connectivity, key counts, and per-session TTLs",
		RunE:  runDiagnostics, // Defined in cmd_diagnostics.go
	}
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove orphaned session keys whose metadata has expired",
		RunE:  runCleanup, // Defined in cmd_cleanup.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"Path to the YAML configuration file")

	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Override the listen port")
	serveCmd.Flags().BoolVar(&debugFlag, "debug", false, "Enable gin debug mode and request logging")

	cleanupCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false,
		"Report orphaned keys without deleting them")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(listSessionsCmd)
	sessionCmd.AddCommand(deleteSessionCmd)
	rootCmd.AddCommand(diagnosticsCmd)
	rootCmd.AddCommand(cleanupCmd)
}
