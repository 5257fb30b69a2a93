package app

import (
	"fmt"
	"strings"
	"time"
)

// History prints the most recent recorded invocations, newest first. With
// files set, the per-file stats of each search are listed below it.
func (a *App) History(limit int, files bool) error {
	if limit <= 0 {
		limit = a.config.History.Limit
	}
	store, err := a.historyStore()
	if err != nil {
		return err
	}
	invs, err := store.List(limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(invs) == 0 {
		fmt.Fprintln(a.stdout, "no recorded invocations")
		return nil
	}

	for _, inv := range invs {
		fmt.Fprintf(a.stdout, "#%d  %s  %-6s  %-10s  %d files  %d matches  %s  %s\n",
			inv.ID, inv.StartedAt.Local().Format(time.RFC3339), inv.Command, inv.Status,
			inv.Files, inv.Matches, inv.Duration.Round(time.Millisecond), inv.Dir)
		fmt.Fprintf(a.stdout, "    %s\n", strings.Join(inv.Args, " "))
		if inv.ErrorMsg != "" {
			fmt.Fprintf(a.stdout, "    error: %s\n", inv.ErrorMsg)
		}
		if !files {
			continue
		}
		stats, err := store.Files(inv.ID)
		if err != nil {
			return fmt.Errorf("failed to read stats of #%d: %w", inv.ID, err)
		}
		for _, st := range stats {
			fmt.Fprintf(a.stdout, "    %6d  %s\n", st.Matches, st.Path)
		}
	}
	return nil
}
