package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"scrapbook-helper/lib/serviceutil"
	"scrapbook-helper/lib/sfapi"
	"scrapbook-helper/lib/telemetry"
	"scrapbook-helper/services/autobattle"
	"scrapbook-helper/services/hof"
	"scrapbook-helper/services/notify"
	"scrapbook-helper/services/scrapbook"
)

var crawlWorkers *int

func init() {
	crawlWorkers = crawlCmd.Flags().Int("workers", 4, "How many crawl workers to run in parallel.")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawls the server's hall of fame, ranks opponents and optionally auto-battles the best one.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustReadConfig()
		ctx := serviceutil.SignalContext()
		telemetry.InstrumentPerfStats(ctx)

		database := mustOpenDB(cfg)
		defer database.Close()

		client, primary, own := mustLogin(ctx, cfg)
		slog.Info("logged in",
			"server", client.URL(), "account", own.Name, "level", own.Level,
			"scrapbook_items", len(own.Scrapbook))

		ranking := scrapbook.NewRanking(
			scrapbook.NewCollection(own.Scrapbook),
			effectiveMaxLevel(cfg, own),
			cfg.LossThreshold,
		)

		pool, err := buildCrawlPool(primary, cfg.AutoBattle)
		if err != nil {
			serviceutil.Fatal("failed to register primary session", err)
		}
		scouts := hof.FillScouts(ctx, pool, client, cfg.ScoutNames, cfg.Scouts)
		if len(scouts) > 0 {
			slog.Info("scout accounts ready", "count", len(scouts), "names", scouts)
		}
		if pool.Len() == 0 {
			slog.Warn("auto battle owns the primary session; configure scouts so the crawl can progress")
		}

		crawler, err := hof.NewCrawler(ctx, hof.CrawlerConfig{
			Server:  serverIdent(cfg),
			Pool:    pool,
			Limiter: hof.NewLimiter(),
			Store:   hof.NewStore(database),
			Ranking: ranking,
			Order:   hof.Order(cfg.CrawlOrder),
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize crawler", err)
		}

		notifier := notify.New(cfg.Notify)

		group, ctx := errgroup.WithContext(ctx)
		for i := 0; i < *crawlWorkers; i++ {
			group.Go(func() error {
				return crawlWorker(ctx, client.URL(), crawler, notifier)
			})
		}
		if cfg.AutoBattle {
			loop := autobattle.NewLoop(primary, ranking, own.NextFreeFight)
			loop.Enable()
			group.Go(func() error {
				return battleWorker(ctx, loop, notifier)
			})
		}

		err = group.Wait()
		if err != nil && ctx.Err() == nil {
			serviceutil.Fatal("crawl failed", err)
		}
		slog.Info("shut down")
	},
}

// buildCrawlPool assembles the session pool crawl workers draw from.
// While auto battle runs it owns the primary session outright, so only
// scouts crawl; a session never serves two requests at once.
func buildCrawlPool(primary hof.GameSession, autoBattle bool) (*hof.Pool, error) {
	pool := hof.NewPool()
	if autoBattle {
		return pool, nil
	}
	return pool, pool.Add(primary, hof.RolePrimary)
}

func crawlWorker(ctx context.Context, server string, crawler *hof.Crawler, notifier notify.Notifier) error {
	reported := false
	for {
		if ctx.Err() != nil {
			return nil
		}
		did, err := crawler.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch {
			case errors.Is(err, hof.ErrSessionsExhausted):
				return err
			case sfapi.IsAuth(err):
				// The session is already out of rotation; the crawl
				// continues on the remaining ones.
				slog.Warn("session rejected during crawl", "err", err)
				continue
			case sfapi.IsRateLimited(err) || sfapi.KindOf(err) == sfapi.KindTransient:
				slog.Debug("crawl step failed, backing off", "err", err)
				sleepCtx(ctx, time.Second)
				continue
			}
			return err
		}
		if did {
			continue
		}
		if crawler.Exhausted() {
			if !reported {
				reported = true
				done, total := crawler.Progress()
				slog.Info("crawl exhausted", "pages", done, "total", total)
				notifier.CrawlDone(server, done*hof.EntriesPerPage)
			}
			sleepCtx(ctx, 30*time.Second)
			continue
		}
		sleepCtx(ctx, 100*time.Millisecond)
	}
}

func battleWorker(ctx context.Context, loop *autobattle.Loop, notifier notify.Notifier) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		result, wait, err := loop.Tick(ctx, time.Now())
		if err != nil {
			slog.Warn("fight attempt failed", "err", err)
		}
		if result.Fought && result.Won {
			notifier.FightWon(result.Target, result.NewItems)
		}
		if wait < time.Second {
			wait = time.Second
		}
		sleepCtx(ctx, wait)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
