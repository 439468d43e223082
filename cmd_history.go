package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"DialogueWidget/internal/history"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	historyNode    string
	historySession string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Report recorded choices",
	Long: `Reads the choice history written by serve and play.

With --node it counts how often each choice was taken from that node across
all sessions. With --session it prints one session's path, step by step.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			logger.Warn("config partially applied", zap.Error(err))
		}
		return runHistory(cmd.Context(), cmd.OutOrStdout(), cfg.HistoryPath, historyNode, historySession)
	},
}

func init() {
	historyCmd.Flags().String("history", "", "SQLite path of the choice history")
	historyCmd.Flags().StringVar(&historyNode, "node", "", "count choices taken from this node")
	historyCmd.Flags().StringVar(&historySession, "session", "", "print the path of this session")
}

func runHistory(ctx context.Context, w io.Writer, path, node, session string) error {
	if (node == "") == (session == "") {
		return errors.New("exactly one of --node or --session is required")
	}
	if path == "" {
		return errors.New("history is disabled (empty history path)")
	}
	// Open would create an empty database; a typo should not.
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no history at %s: %w", path, err)
	}

	store, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	if session != "" {
		steps, err := store.Path(ctx, session)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			return fmt.Errorf("no steps recorded for session %s", session)
		}
		for _, st := range steps {
			fmt.Fprintf(w, "%s  [%s] %s --%s--> %s\n",
				st.At.Local().Format("2006-01-02 15:04:05"), st.Lang, st.From, st.Choice, st.To)
		}
		return nil
	}

	counts, err := store.Popular(ctx, node)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Fprintf(w, "no choices recorded from %s\n", node)
		return nil
	}
	choices := make([]string, 0, len(counts))
	for c := range counts {
		choices = append(choices, c)
	}
	sort.Slice(choices, func(i, j int) bool {
		if counts[choices[i]] != counts[choices[j]] {
			return counts[choices[i]] > counts[choices[j]]
		}
		return choices[i] < choices[j]
	})
	for _, c := range choices {
		fmt.Fprintf(w, "%6d  %s\n", counts[c], c)
	}
	return nil
}
