package main

import (
	"context"

	"scrapbook-helper/cmd/scrapbook-helper/commands"
	"scrapbook-helper/lib/serviceutil"
	"scrapbook-helper/lib/telemetry"
)

func main() {
	ctx := context.Background()

	t, err := telemetry.SetupFromEnv(ctx, "scrapbook-helper")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InitSlog(true)

	commands.ExecuteContext(ctx)
}
