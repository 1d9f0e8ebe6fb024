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
)

func runListSessions(cmd *cobra.Command, args []string) error {
	kv, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer kv.Close()

	engine := session.NewEngine(kv, session.WithTTL(sessionTTL()))
	infos, err := engine.ListSessions(cmd.Context())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No live sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tVERSION\tSOURCE\tTABLES\tLAST ACCESS")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			info.ID,
			info.Metadata.CurrentVersion,
			info.Metadata.SourceName,
			info.Metadata.TableCount,
			info.Metadata.LastAccess.Format(time.RFC3339))
	}
	return w.Flush()
}

func runDeleteSession(cmd *cobra.Command, args []string) error {
	kv, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer kv.Close()

	engine := session.NewEngine(kv, session.WithTTL(sessionTTL()))
	n, err := engine.DeleteSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Deleted session %s (%d keys).\n", args[0], n)
	return nil
}
