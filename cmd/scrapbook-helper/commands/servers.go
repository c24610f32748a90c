package commands

import (
	"context"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"scrapbook-helper/lib/serviceutil"
	"scrapbook-helper/lib/sfapi"
)

func init() {
	rootCmd.AddCommand(serversCmd)
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Lists the official game servers.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()

		servers, err := sfapi.FetchServerList(ctx)
		if err != nil {
			serviceutil.Fatal("failed to fetch server list", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "URL"})
		for _, server := range servers {
			t.AppendRow(table.Row{server.Name, server.URL})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
	},
}
