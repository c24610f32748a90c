package commands

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var planLength *int

func init() {
	planLength = planCmd.Flags().Int("n", 30, "Maximum number of fights to plan.")
	rootCmd.AddCommand(planCmd)
}

var planCmd = &cobra.Command{
	Use:   "plan [--n <fights>]",
	Short: "Plans a battle order that accounts for items shared between opponents.",
	Long: "Plans a sequence of fights where each pick assumes the previous fights were won, " +
		"so opponents wearing the same missing items stop double counting.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustReadConfig()
		ctx := context.Background()

		database := mustOpenDB(cfg)
		defer database.Close()

		_, _, own := mustLogin(ctx, cfg)
		ranking := loadRanking(ctx, cfg, database, serverIdent(cfg), own)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Fight", "Name", "Level", "New Items"})
		for i, step := range ranking.PlanBattleOrder(*planLength) {
			t.AppendRow(table.Row{i + 1, step.Name, step.Level, step.Score})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
	},
}
