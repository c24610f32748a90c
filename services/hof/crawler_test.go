package hof

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"scrapbook-helper/lib/sfapi"
	"scrapbook-helper/lib/testutil"
	"scrapbook-helper/services/hof/db"
	"scrapbook-helper/services/scrapbook"
)

// fakeDirectory simulates one game server's hall of fame and counts
// every fetch, so tests can assert nothing is fetched twice.
type fakeDirectory struct {
	mu          sync.Mutex
	players     []sfapi.Character
	pageFetches map[int]int
	viewFetches map[string]int
	viewErr     map[string]error
}

func newFakeDirectory(players int) *fakeDirectory {
	d := &fakeDirectory{
		pageFetches: map[int]int{},
		viewFetches: map[string]int{},
		viewErr:     map[string]error{},
	}
	d.addPlayers(players)
	return d
}

func (d *fakeDirectory) addPlayers(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ; n > 0; n-- {
		i := len(d.players)
		d.players = append(d.players, sfapi.Character{
			UID:   int64(i + 1),
			Name:  fmt.Sprintf("player%03d", i),
			Level: 10 + i%50,
			Equipment: []sfapi.ItemIdent{
				sfapi.ItemIdent(fmt.Sprintf("1:1:%d", i%90)),
				sfapi.ItemIdent(fmt.Sprintf("2:1:%d", i%90)),
			},
		})
	}
}

func (d *fakeDirectory) session(name string) *fakeDirSession {
	return &fakeDirSession{dir: d, name: name}
}

type fakeDirSession struct {
	dir  *fakeDirectory
	name string
	err  error
}

func (s *fakeDirSession) Name() string { return s.name }

func (s *fakeDirSession) HallOfFamePage(ctx context.Context, page int) (sfapi.HallOfFamePage, error) {
	if s.err != nil {
		return sfapi.HallOfFamePage{}, s.err
	}
	d := s.dir
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pageFetches[page]++

	out := sfapi.HallOfFamePage{Page: page, TotalPlayers: len(d.players)}
	start := page * EntriesPerPage
	for i := start; i < start+EntriesPerPage && i < len(d.players); i++ {
		out.Entries = append(out.Entries, sfapi.CharacterRef{
			Rank:  i + 1,
			Name:  d.players[i].Name,
			Level: d.players[i].Level,
		})
	}
	return out, nil
}

func (s *fakeDirSession) ViewPlayer(ctx context.Context, name string) (sfapi.Character, error) {
	if s.err != nil {
		return sfapi.Character{}, s.err
	}
	d := s.dir
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewFetches[name]++
	if err, ok := d.viewErr[name]; ok {
		return sfapi.Character{}, err
	}
	for _, p := range d.players {
		if p.Name == name {
			return p, nil
		}
	}
	return sfapi.Character{}, &sfapi.Error{Kind: sfapi.KindUnreachable}
}

func testCrawler(t *testing.T, dir *fakeDirectory, server string, order Order) (*Crawler, *scrapbook.Ranking, Store) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/hof",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	pool := NewPool()
	require.NoError(t, pool.Add(dir.session("scout1"), RoleScout))
	require.NoError(t, pool.Add(dir.session("scout2"), RoleScout))

	ranking := scrapbook.NewRanking(nil, 0, 3)
	store := NewStore(setup.DB)
	crawler, err := NewCrawler(context.Background(), CrawlerConfig{
		Server:  server,
		Pool:    pool,
		Limiter: NewLimiterIntervals(0, 0),
		Store:   store,
		Ranking: ranking,
		Order:   order,
	})
	require.NoError(t, err)
	return crawler, ranking, store
}

func drain(t *testing.T, c *Crawler) int {
	steps := 0
	for {
		did, err := c.Step(context.Background())
		require.NoError(t, err)
		if !did {
			return steps
		}
		steps++
		require.Less(t, steps, 10000, "crawler did not terminate")
	}
}

func TestCrawlerVisitsEveryPageOnce(t *testing.T) {
	dir := newFakeDirectory(90)
	crawler, ranking, _ := testCrawler(t, dir, "s1", OrderTopDown)

	drain(t, crawler)
	require.True(t, crawler.Exhausted())

	for page := 0; page < 3; page++ {
		require.Equal(t, 1, dir.pageFetches[page], "page %d", page)
	}
	for _, p := range dir.players {
		require.Equal(t, 1, dir.viewFetches[p.Name], "player %s", p.Name)
	}
	require.Equal(t, len(dir.players), ranking.Len())

	done, total := crawler.Progress()
	require.Equal(t, 3, done)
	require.Equal(t, 3, total)
}

func TestCrawlerResumes(t *testing.T) {
	dir := newFakeDirectory(90)

	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/hof",
		DbSchema: db.Schema,
	})
	defer cleanup()
	store := NewStore(setup.DB)

	newPool := func() *Pool {
		pool := NewPool()
		require.NoError(t, pool.Add(dir.session("scout1"), RoleScout))
		return pool
	}
	cfg := CrawlerConfig{
		Server:  "s1",
		Pool:    newPool(),
		Limiter: NewLimiterIntervals(0, 0),
		Store:   store,
		Ranking: scrapbook.NewRanking(nil, 0, 3),
		Order:   OrderRandom,
	}

	first, err := NewCrawler(context.Background(), cfg)
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		_, err := first.Step(context.Background())
		require.NoError(t, err)
	}
	require.False(t, first.Exhausted())

	// a new process picks up where the last one stopped
	cfg.Pool = newPool()
	cfg.Ranking = scrapbook.NewRanking(nil, 0, 3)
	second, err := NewCrawler(context.Background(), cfg)
	require.NoError(t, err)
	drain(t, second)
	require.True(t, second.Exhausted())

	for page := 0; page < 3; page++ {
		require.Equal(t, 1, dir.pageFetches[page], "page %d", page)
	}
	for _, p := range dir.players {
		require.Equal(t, 1, dir.viewFetches[p.Name], "player %s", p.Name)
	}
	require.Equal(t, len(dir.players), cfg.Ranking.Len())
}

func TestCrawlerCrawlsGrownPagesAfterRestart(t *testing.T) {
	dir := newFakeDirectory(90)

	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/hof",
		DbSchema: db.Schema,
	})
	defer cleanup()
	store := NewStore(setup.DB)

	newCrawler := func() *Crawler {
		pool := NewPool()
		require.NoError(t, pool.Add(dir.session("scout1"), RoleScout))
		c, err := NewCrawler(context.Background(), CrawlerConfig{
			Server:  "s1",
			Pool:    pool,
			Limiter: NewLimiterIntervals(0, 0),
			Store:   store,
			Ranking: scrapbook.NewRanking(nil, 0, 3),
			Order:   OrderTopDown,
		})
		require.NoError(t, err)
		return c
	}

	first := newCrawler()
	did, err := first.Step(context.Background())
	require.NoError(t, err)
	require.True(t, did)

	// the directory gains a page after the crawl was sized
	dir.addPlayers(30)
	steps := 0
	for dir.pageFetches[1] == 0 {
		_, err := first.Step(context.Background())
		require.NoError(t, err)
		steps++
		require.Less(t, steps, 10000, "crawler did not terminate")
	}

	// the process dies before reaching the grown page
	second := newCrawler()
	drain(t, second)
	require.True(t, second.Exhausted())

	for page := 0; page < 4; page++ {
		require.Equal(t, 1, dir.pageFetches[page], "page %d", page)
	}
	for _, p := range dir.players {
		require.Equal(t, 1, dir.viewFetches[p.Name], "player %s", p.Name)
	}
	done, total := second.Progress()
	require.Equal(t, 4, done)
	require.Equal(t, 4, total)
}

func TestCrawlerKeepsConfiguredOrder(t *testing.T) {
	dir := newFakeDirectory(90)

	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/hof",
		DbSchema: db.Schema,
	})
	defer cleanup()
	store := NewStore(setup.DB)

	newCrawler := func(order Order) *Crawler {
		pool := NewPool()
		require.NoError(t, pool.Add(dir.session("scout1"), RoleScout))
		c, err := NewCrawler(context.Background(), CrawlerConfig{
			Server:  "s1",
			Pool:    pool,
			Limiter: NewLimiterIntervals(0, 0),
			Store:   store,
			Ranking: scrapbook.NewRanking(nil, 0, 3),
			Order:   order,
		})
		require.NoError(t, err)
		return c
	}

	// a fresh store must not shadow the configured order
	first := newCrawler(OrderBottomUp)
	require.Equal(t, OrderBottomUp, first.order)

	did, err := first.Step(context.Background())
	require.NoError(t, err)
	require.True(t, did)
	require.Equal(t, []int{2, 1}, first.pendingPages)

	// once persisted, the running crawl's order wins over the config
	second := newCrawler(OrderTopDown)
	require.Equal(t, OrderBottomUp, second.order)
}

func TestCrawlerQueuesRelistedCharacterOnce(t *testing.T) {
	dir := newFakeDirectory(60)
	dup := dir.players[0].Name
	// the directory shifted: page 1 lists a character page 0 had
	dir.players[30] = dir.players[0]
	crawler, ranking, _ := testCrawler(t, dir, "s1", OrderTopDown)

	did, err := crawler.Step(context.Background())
	require.NoError(t, err)
	require.True(t, did)

	// hold the duplicate's detail fetch while page 1 relists it
	held, ok := crawler.claim()
	require.True(t, ok)
	require.Equal(t, dup, held.char)

	steps := 0
	for dir.pageFetches[1] == 0 {
		did, err := crawler.Step(context.Background())
		require.NoError(t, err)
		require.True(t, did)
		steps++
		require.Less(t, steps, 10000, "crawler did not terminate")
	}
	crawler.unclaim(held)

	drain(t, crawler)
	require.True(t, crawler.Exhausted())
	require.Equal(t, 1, dir.viewFetches[dup])
	require.Equal(t, 59, ranking.Len())
}

func TestCrawlerPause(t *testing.T) {
	dir := newFakeDirectory(90)
	crawler, _, _ := testCrawler(t, dir, "s1", OrderTopDown)

	did, err := crawler.Step(context.Background())
	require.NoError(t, err)
	require.True(t, did)

	crawler.Pause()
	require.Equal(t, StatePaused, crawler.State())
	did, err = crawler.Step(context.Background())
	require.NoError(t, err)
	require.False(t, did)

	crawler.Resume()
	did, err = crawler.Step(context.Background())
	require.NoError(t, err)
	require.True(t, did)
}

func TestCrawlerDropsVanishedCharacters(t *testing.T) {
	dir := newFakeDirectory(30)
	dir.viewErr["player005"] = &sfapi.Error{Kind: sfapi.KindUnreachable}
	crawler, ranking, _ := testCrawler(t, dir, "s1", OrderTopDown)

	drain(t, crawler)
	require.True(t, crawler.Exhausted())
	require.Equal(t, 29, ranking.Len())
	require.Equal(t, 1, dir.viewFetches["player005"])
}

func TestCrawlerRetriesFlakyCharacters(t *testing.T) {
	dir := newFakeDirectory(30)
	dir.viewErr["player007"] = &sfapi.Error{Kind: sfapi.KindTransient}
	crawler, ranking, _ := testCrawler(t, dir, "s1", OrderTopDown)

	steps := 0
	for !crawler.Exhausted() {
		_, err := crawler.Step(context.Background())
		if err != nil {
			require.True(t, sfapi.KindOf(err) == sfapi.KindTransient)
		}
		steps++
		require.Less(t, steps, 10000, "crawler did not terminate")
	}

	// given up after a bounded number of attempts
	require.Equal(t, maxDetailRetries, dir.viewFetches["player007"])
	require.Equal(t, 29, ranking.Len())
}

func TestCrawlerDisablesRejectedSessions(t *testing.T) {
	dir := newFakeDirectory(30)

	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/hof",
		DbSchema: db.Schema,
	})
	defer cleanup()

	bad := dir.session("bad")
	bad.err = &sfapi.Error{Kind: sfapi.KindAuth}

	pool := NewPool()
	require.NoError(t, pool.Add(bad, RoleScout))
	require.NoError(t, pool.Add(dir.session("good"), RoleScout))

	crawler, err := NewCrawler(context.Background(), CrawlerConfig{
		Server:  "s1",
		Pool:    pool,
		Limiter: NewLimiterIntervals(0, 0),
		Store:   NewStore(setup.DB),
		Ranking: scrapbook.NewRanking(nil, 0, 3),
		Order:   OrderTopDown,
	})
	require.NoError(t, err)

	steps := 0
	for !crawler.Exhausted() {
		_, err := crawler.Step(context.Background())
		if err != nil {
			require.True(t, sfapi.IsAuth(err))
		}
		steps++
		require.Less(t, steps, 10000, "crawler did not terminate")
	}
	require.Equal(t, 1, pool.DisabledCount())
}

func TestOrderPages(t *testing.T) {
	require.Equal(t, []int{0, 1, 2, 3}, OrderTopDown.Pages(4, 1))
	require.Equal(t, []int{3, 2, 1, 0}, OrderBottomUp.Pages(4, 1))

	// same seed, same permutation
	a := OrderRandom.Pages(50, 42)
	b := OrderRandom.Pages(50, 42)
	require.Empty(t, cmp.Diff(a, b))

	seen := map[int]bool{}
	for _, p := range a {
		require.False(t, seen[p])
		seen[p] = true
	}
	require.Len(t, seen, 50)
}

func TestPageCount(t *testing.T) {
	require.Equal(t, 0, pageCount(0))
	require.Equal(t, 1, pageCount(1))
	require.Equal(t, 1, pageCount(30))
	require.Equal(t, 2, pageCount(31))
}
