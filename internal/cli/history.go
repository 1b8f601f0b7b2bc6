package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/curator/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and maintain the published-cluster history",
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop history records older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		store, err := history.Open(ctx, cfg.History, false)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		removed, err := store.Prune(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d records older than %d days\n", removed, cfg.History.RetentionDays)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the records inside the dedup window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		store, err := history.Open(ctx, cfg.History, false)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		h, err := store.Load(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderHistory(h.Window(time.Now().UTC(), cfg.History.DedupWindowDays), len(h.Records)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPruneCmd)
	historyCmd.AddCommand(historyShowCmd)
}
