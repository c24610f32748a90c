package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"scrapbook-helper/lib/serviceutil"
	"scrapbook-helper/services/hof"
)

func init() {
	rootCmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore <path/to/backup.zhof>",
	Short: "Restores crawl progress from a backup file, compressed or not.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustReadConfig()
		ctx := context.Background()

		database := mustOpenDB(cfg)
		defer database.Close()

		store := hof.NewStore(database)
		state, err := store.RestoreBackup(ctx, serverIdent(cfg), args[0])
		if err != nil {
			serviceutil.Fatal("failed to restore backup", err)
		}
		slog.Info("backup restored",
			"characters", len(state.Snapshots),
			"pages_done", state.PagesDone,
			"total_pages", state.TotalPages)
	},
}
