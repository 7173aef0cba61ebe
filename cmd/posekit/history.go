package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/PoseKit/synth"
)

const (
	historyTrends   = "trends"
	historyRecent   = "recent"
	historySessions = "sessions"
	historyStats    = "stats"
	historyActions  = "actions"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [user]",
		Short: "Print deterministic training history for a demo user",
		Long: `Print the synthesized training history for a user as JSON.

Kinds:
  trends    one point per trained day over the whole history range
  recent    the last --days trend points
  sessions  per-session records, newest first
  stats     dashboard aggregates
  actions   stroke match scores with their coached poses`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := synth.DefaultUser
			if len(args) == 1 {
				user = args[0]
			}
			kind, err := cmd.Flags().GetString("kind")
			if err != nil {
				return fmt.Errorf("failed to get kind flag: %w", err)
			}
			days, err := cmd.Flags().GetInt("days")
			if err != nil {
				return fmt.Errorf("failed to get days flag: %w", err)
			}
			return writeHistory(cmd.OutOrStdout(), user, kind, days)
		},
	}
	cmd.Flags().StringP("kind", "k", historyTrends, "What to print: trends, recent, sessions, stats or actions")
	cmd.Flags().Int("days", 7, "Number of points for --kind recent")
	return cmd
}

func writeHistory(out io.Writer, user, kind string, days int) error {
	var v any
	switch kind {
	case historyTrends:
		v = synth.HistorySlice(user, synth.HistoryOptions{})
	case historyRecent:
		v = synth.RecentTrends(user, days)
	case historySessions:
		v = synth.Sessions(user)
	case historyStats:
		v = synth.Stats(user)
	case historyActions:
		v = synth.ActionMatches(user)
	default:
		return fmt.Errorf("unknown history kind %q", kind)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}
