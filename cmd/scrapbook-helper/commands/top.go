package commands

import (
	"context"
	"database/sql"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"scrapbook-helper/lib/serviceutil"
	"scrapbook-helper/lib/sfapi"
	"scrapbook-helper/services/hof"
	"scrapbook-helper/services/scrapbook"
)

var topCount *int

func init() {
	topCount = topCmd.Flags().Int("n", 20, "How many candidates to list.")
	rootCmd.AddCommand(topCmd)
}

var topCmd = &cobra.Command{
	Use:   "top [--n <count>]",
	Short: "Lists the best opponents from the crawled data, ranked by missing scrapbook items.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustReadConfig()
		ctx := context.Background()

		database := mustOpenDB(cfg)
		defer database.Close()

		_, _, own := mustLogin(ctx, cfg)
		ranking := loadRanking(ctx, cfg, database, serverIdent(cfg), own)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Name", "Level", "Missing Items"})
		for i, candidate := range ranking.Top(*topCount) {
			t.AppendRow(table.Row{i + 1, candidate.Name, candidate.Level, candidate.Score})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
	},
}

// loadRanking rebuilds the opponent ranking from persisted snapshots.
func loadRanking(ctx context.Context, cfg Config, database *sql.DB, server string, own sfapi.OwnCharacter) *scrapbook.Ranking {
	ranking := scrapbook.NewRanking(
		scrapbook.NewCollection(own.Scrapbook),
		effectiveMaxLevel(cfg, own),
		cfg.LossThreshold,
	)
	state, err := hof.NewStore(database).Load(ctx, server)
	if err != nil {
		serviceutil.Fatal("failed to load crawled data", err)
	}
	for _, snap := range state.Snapshots {
		ranking.Upsert(snap)
	}
	return ranking
}
