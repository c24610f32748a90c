package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"scrapbook-helper/lib/serviceutil"
	"scrapbook-helper/services/hof"
)

var exportOut *string

func init() {
	exportOut = exportCmd.Flags().String("out", "backup.zhof", "Backup file to write. A .zhof suffix compresses the output.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--out <path/to/backup.zhof>]",
	Short: "Exports crawl progress and all fetched characters to a backup file.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustReadConfig()
		ctx := context.Background()

		database := mustOpenDB(cfg)
		defer database.Close()

		store := hof.NewStore(database)
		err := store.ExportBackup(ctx, serverIdent(cfg), *exportOut)
		if err != nil {
			serviceutil.Fatal("failed to export backup", err)
		}
		slog.Info("backup written", "path", *exportOut)
	},
}
