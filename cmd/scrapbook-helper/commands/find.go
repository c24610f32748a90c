package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"scrapbook-helper/lib/serviceutil"
	"scrapbook-helper/services/hof"
)

func init() {
	rootCmd.AddCommand(findCmd)
}

var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Fuzzy-searches crawled characters by name.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustReadConfig()
		ctx := context.Background()
		query := strings.ToLower(args[0])

		database := mustOpenDB(cfg)
		defer database.Close()

		state, err := hof.NewStore(database).Load(ctx, serverIdent(cfg))
		if err != nil {
			serviceutil.Fatal("failed to load crawled data", err)
		}
		if len(state.Snapshots) == 0 {
			fmt.Println("nothing crawled yet")
			os.Exit(1)
		}

		type match struct {
			name     string
			level    int
			distance int
		}
		var matches []match
		for _, snap := range state.Snapshots {
			name := strings.ToLower(snap.Name)
			distance := matchr.DamerauLevenshtein(query, name)
			if strings.Contains(name, query) {
				distance = 0
			}
			if distance <= 3 {
				matches = append(matches, match{snap.Name, snap.Level, distance})
			}
		}
		sort.Slice(matches, func(i, j int) bool {
			if matches[i].distance != matches[j].distance {
				return matches[i].distance < matches[j].distance
			}
			return matches[i].name < matches[j].name
		})

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Level"})
		for _, m := range matches {
			t.AppendRow(table.Row{m.name, m.level})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
	},
}
