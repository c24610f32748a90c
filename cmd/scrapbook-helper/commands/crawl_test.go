package commands

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scrapbook-helper/lib/sfapi"
	"scrapbook-helper/lib/testutil"
	"scrapbook-helper/services/hof"
	hofdb "scrapbook-helper/services/hof/db"
	"scrapbook-helper/services/notify"
	"scrapbook-helper/services/scrapbook"
)

type stubDirectory struct {
	mu      sync.Mutex
	players []sfapi.Character
}

func newStubDirectory(players int) *stubDirectory {
	d := &stubDirectory{}
	for i := 0; i < players; i++ {
		d.players = append(d.players, sfapi.Character{
			UID:       int64(i + 1),
			Name:      fmt.Sprintf("char%02d", i),
			Level:     10 + i,
			Equipment: []sfapi.ItemIdent{sfapi.ItemIdent(fmt.Sprintf("1:1:%d", i+1))},
		})
	}
	return d
}

type stubSession struct {
	dir  *stubDirectory
	name string
	err  error
}

func (s *stubSession) Name() string { return s.name }

func (s *stubSession) HallOfFamePage(ctx context.Context, page int) (sfapi.HallOfFamePage, error) {
	if s.err != nil {
		return sfapi.HallOfFamePage{}, s.err
	}
	d := s.dir
	d.mu.Lock()
	defer d.mu.Unlock()
	out := sfapi.HallOfFamePage{Page: page, TotalPlayers: len(d.players)}
	start := page * hof.EntriesPerPage
	for i := start; i < start+hof.EntriesPerPage && i < len(d.players); i++ {
		out.Entries = append(out.Entries, sfapi.CharacterRef{
			Rank:  i + 1,
			Name:  d.players[i].Name,
			Level: d.players[i].Level,
		})
	}
	return out, nil
}

func (s *stubSession) ViewPlayer(ctx context.Context, name string) (sfapi.Character, error) {
	if s.err != nil {
		return sfapi.Character{}, s.err
	}
	d := s.dir
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.players {
		if p.Name == name {
			return p, nil
		}
	}
	return sfapi.Character{}, &sfapi.Error{Kind: sfapi.KindUnreachable}
}

func TestCrawlWorkerOutlivesRejectedSession(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "cmd/scrapbook-helper",
		DbSchema: hofdb.Schema,
	})
	defer cleanup()

	dir := newStubDirectory(5)
	bad := &stubSession{dir: dir, name: "bad", err: &sfapi.Error{Kind: sfapi.KindAuth}}
	good := &stubSession{dir: dir, name: "good"}

	pool := hof.NewPool()
	require.NoError(t, pool.Add(bad, hof.RoleScout))
	require.NoError(t, pool.Add(good, hof.RoleScout))

	ranking := scrapbook.NewRanking(nil, 0, 3)
	crawler, err := hof.NewCrawler(context.Background(), hof.CrawlerConfig{
		Server:  "s1",
		Pool:    pool,
		Limiter: hof.NewLimiterIntervals(0, 0),
		Store:   hof.NewStore(setup.DB),
		Ranking: ranking,
		Order:   hof.OrderTopDown,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- crawlWorker(ctx, "s1", crawler, notify.Notifier{})
	}()

	// the rejected session only takes itself out of rotation
	require.Eventually(t, crawler.Exhausted, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 1, pool.DisabledCount())
	require.Equal(t, 5, ranking.Len())
}

func TestCrawlPoolReservesPrimaryForAutoBattle(t *testing.T) {
	primary := &stubSession{name: "primary"}

	pool, err := buildCrawlPool(primary, false)
	require.NoError(t, err)
	require.Equal(t, 1, pool.Len())

	pool, err = buildCrawlPool(primary, true)
	require.NoError(t, err)
	require.Equal(t, 0, pool.Len())
}
