package hof

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"scrapbook-helper/lib/sfapi"
	"scrapbook-helper/services/scrapbook"
)

// Order decides which directory pages get crawled first.
type Order string

const (
	// OrderRandom spreads load across the directory. The permutation
	// is seeded from the server name, so a resumed crawl walks the
	// same sequence.
	OrderRandom   Order = "random"
	OrderTopDown  Order = "top-down"
	OrderBottomUp Order = "bottom-up"
)

func (o Order) valid() bool {
	switch o {
	case OrderRandom, OrderTopDown, OrderBottomUp:
		return true
	}
	return false
}

// Pages returns the full page visit sequence for a directory of total
// pages.
func (o Order) Pages(total int, seed int64) []int {
	pages := make([]int, total)
	for i := range pages {
		pages[i] = i
	}
	switch o {
	case OrderBottomUp:
		for i, j := 0, total-1; i < j; i, j = i+1, j-1 {
			pages[i], pages[j] = pages[j], pages[i]
		}
	case OrderRandom:
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(total, func(i, j int) {
			pages[i], pages[j] = pages[j], pages[i]
		})
	}
	return pages
}

func orderSeed(server string) int64 {
	h := fnv.New64a()
	h.Write([]byte(server))
	return int64(h.Sum64())
}

// EntriesPerPage is how many characters one directory page lists.
const EntriesPerPage = 30

const maxDetailRetries = 3

// A recently fetched character is not fetched again when another page
// lists it within this window.
const recentTTL = 30 * time.Minute

type State int

const (
	StateIdle State = iota
	StatePaging
	StateFetchingDetail
	StatePaused
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePaging:
		return "paging"
	case StateFetchingDetail:
		return "fetching-detail"
	case StatePaused:
		return "paused"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Crawler walks a server's character directory page by page and feeds
// every fetched character into the ranking. All progress is persisted
// through the store before the in-memory cursor moves, so a crash
// resumes without losing or repeating a page.
//
// Step is safe to call from many goroutines at once: each call claims
// one unit of work, so workers never fetch the same page or character
// twice concurrently.
type Crawler struct {
	server  string
	pool    *Pool
	limiter *Limiter
	store   Store
	ranking *scrapbook.Ranking
	order   Order

	mu            sync.Mutex
	totalPages    int
	pagesDone     int
	pendingPages  []int
	pendingChars  []string
	inFlightPages map[int]bool
	inFlightChars map[string]bool
	retries       map[string]int
	recent        *expirable.LRU[string, struct{}]
	bootstrapping bool
	paused        bool
}

type CrawlerConfig struct {
	Server  string
	Pool    *Pool
	Limiter *Limiter
	Store   Store
	Ranking *scrapbook.Ranking
	Order   Order
}

// NewCrawler restores persisted progress for the server, or starts
// fresh when there is none. Undecodable state is dropped with a single
// warning and the crawl restarts from nothing.
func NewCrawler(ctx context.Context, cfg CrawlerConfig) (*Crawler, error) {
	order := cfg.Order
	if !order.valid() {
		order = OrderRandom
	}
	c := &Crawler{
		server:        cfg.Server,
		pool:          cfg.Pool,
		limiter:       cfg.Limiter,
		store:         cfg.Store,
		ranking:       cfg.Ranking,
		order:         order,
		inFlightPages: map[int]bool{},
		inFlightChars: map[string]bool{},
		retries:       map[string]int{},
		recent:        expirable.NewLRU[string, struct{}](4096, nil, recentTTL),
	}

	state, err := c.store.Load(ctx, cfg.Server)
	if err != nil {
		if !IsCorruptState(err) {
			return nil, err
		}
		slog.WarnContext(ctx, "persisted crawl state unreadable, restarting crawl",
			"server", cfg.Server, "err", err)
		err = c.store.Clear(ctx, cfg.Server)
		if err != nil {
			return nil, err
		}
		state = CrawlState{Server: cfg.Server, Order: order}
	}

	c.totalPages = state.TotalPages
	c.pagesDone = state.PagesDone
	c.pendingPages = state.PendingPages
	c.pendingChars = state.PendingCharacters
	if state.Order.valid() {
		c.order = state.Order
	}
	for _, snap := range state.Snapshots {
		c.ranking.Upsert(snap)
	}

	// A restored backup knows how many pages are done but not which
	// ones remain; rebuild the remainder of the deterministic
	// permutation.
	if c.totalPages > 0 && len(c.pendingPages) == 0 && c.pagesDone < c.totalPages {
		perm := c.order.Pages(c.totalPages, orderSeed(c.server))
		remaining := perm[c.pagesDone:]
		err = c.store.RefillPages(ctx, c.server, remaining)
		if err != nil {
			return nil, err
		}
		c.pendingPages = remaining
	}
	return c, nil
}

func IsCorruptState(err error) bool {
	return errors.Is(err, ErrCorruptState)
}

// Pause stops handing out new work. Steps already in flight complete
// and are recorded normally.
func (c *Crawler) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *Crawler) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

func (c *Crawler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.paused:
		return StatePaused
	case len(c.pendingChars) > 0 || len(c.inFlightChars) > 0:
		return StateFetchingDetail
	case len(c.pendingPages) > 0 || len(c.inFlightPages) > 0 || c.totalPages == 0:
		return StatePaging
	case c.totalPages > 0:
		return StateExhausted
	}
	return StateIdle
}

// Progress reports pages done out of total. Total is 0 until the first
// page has been fetched.
func (c *Crawler) Progress() (done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pagesDone, c.totalPages
}

// Exhausted reports whether every page and every listed character has
// been processed.
func (c *Crawler) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPages > 0 &&
		len(c.pendingPages) == 0 && len(c.inFlightPages) == 0 &&
		len(c.pendingChars) == 0 && len(c.inFlightChars) == 0
}

type task struct {
	bootstrap bool
	page      int
	char      string
	isPage    bool
	isChar    bool
}

// claim picks one unit of work and marks it in flight.
func (c *Crawler) claim() (task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return task{}, false
	}
	if c.totalPages == 0 {
		if c.bootstrapping {
			return task{}, false
		}
		c.bootstrapping = true
		return task{bootstrap: true}, true
	}
	// Details drain first so the listing queue stays small.
	for _, name := range c.pendingChars {
		if c.inFlightChars[name] {
			continue
		}
		c.inFlightChars[name] = true
		return task{char: name, isChar: true}, true
	}
	for _, page := range c.pendingPages {
		if c.inFlightPages[page] {
			continue
		}
		c.inFlightPages[page] = true
		return task{page: page, isPage: true}, true
	}
	return task{}, false
}

func (c *Crawler) unclaim(t task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case t.bootstrap:
		c.bootstrapping = false
	case t.isPage:
		delete(c.inFlightPages, t.page)
	case t.isChar:
		delete(c.inFlightChars, t.char)
	}
}

// Step performs at most one API request worth of work and returns
// whether it did any. Callers sleep briefly and retry when it returns
// false.
func (c *Crawler) Step(ctx context.Context) (bool, error) {
	t, ok := c.claim()
	if !ok {
		return false, nil
	}

	var err error
	switch {
	case t.bootstrap:
		err = c.bootstrap(ctx, t)
	case t.isChar:
		err = c.fetchDetail(ctx, t)
	default:
		err = c.fetchPage(ctx, t)
	}
	if errors.Is(err, errNoSession) {
		c.unclaim(t)
		return false, nil
	}
	return true, err
}

// bootstrap fetches page 0 to learn the directory size, then persists
// the full page permutation.
func (c *Crawler) bootstrap(ctx context.Context, t task) error {
	ctx, span := tracer.Start(ctx, "Crawler.bootstrap")
	defer span.End()
	span.SetAttributes(attribute.String("server", c.server))

	page, err := request(c, ctx, func(ctx context.Context, s *Session) (sfapi.HallOfFamePage, error) {
		return s.Game.HallOfFamePage(ctx, 0)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bootstrap page fetch failed")
		c.unclaim(t)
		return err
	}

	total := pageCount(page.TotalPlayers)
	pages := c.order.Pages(total, orderSeed(c.server))
	err = c.store.InitCrawl(ctx, c.server, pages, c.order, total)
	if err != nil {
		c.unclaim(t)
		return err
	}

	c.mu.Lock()
	c.totalPages = total
	c.pagesDone = 0
	c.pendingPages = pages
	c.bootstrapping = false
	c.inFlightPages[0] = true
	c.mu.Unlock()

	slog.InfoContext(ctx, "crawl initialized",
		"server", c.server, "players", page.TotalPlayers, "pages", total, "order", c.order)
	return c.recordPage(ctx, 0, page)
}

func (c *Crawler) fetchPage(ctx context.Context, t task) error {
	ctx, span := tracer.Start(ctx, "Crawler.fetchPage")
	defer span.End()
	span.SetAttributes(
		attribute.String("server", c.server),
		attribute.Int("page", t.page),
	)

	page, err := request(c, ctx, func(ctx context.Context, s *Session) (sfapi.HallOfFamePage, error) {
		return s.Game.HallOfFamePage(ctx, t.page)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page fetch failed")
		c.unclaim(t)
		return err
	}
	return c.recordPage(ctx, t.page, page)
}

// recordPage persists a page's listings, any page-count refinement and
// the cursor advance inside one transaction.
func (c *Crawler) recordPage(ctx context.Context, pageNum int, page sfapi.HallOfFamePage) error {
	c.mu.Lock()
	var names []string
	for _, entry := range page.Entries {
		if _, seen := c.recent.Get(entry.Name); seen {
			continue
		}
		names = append(names, entry.Name)
	}
	grown, shrunk := c.refineTotalLocked(ctx, page.TotalPlayers)
	totalPages := c.totalPages
	c.mu.Unlock()

	err := c.store.NotePage(ctx, c.server, PageNote{
		Page:       pageNum,
		Characters: names,
		TotalPages: totalPages,
		Order:      c.order,
		GrownPages: grown,
		GrowFirst:  c.order == OrderBottomUp,
		Shrunk:     shrunk,
	})
	if err != nil {
		c.mu.Lock()
		delete(c.inFlightPages, pageNum)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.pagesDone++
	delete(c.inFlightPages, pageNum)
	c.dropPendingPageLocked(pageNum)
	// A character can appear on two pages when the directory shifts
	// between fetches; it must enter the detail queue once.
	queued := make(map[string]bool, len(c.pendingChars))
	for _, pending := range c.pendingChars {
		queued[pending] = true
	}
	for _, name := range names {
		if queued[name] || c.inFlightChars[name] {
			continue
		}
		c.pendingChars = append(c.pendingChars, name)
	}
	c.mu.Unlock()
	return nil
}

// refineTotalLocked reconciles the page count with the player total the
// server just reported. New trailing pages are placed per the crawl
// order; pages past a shrunken directory get dropped. The returned
// growth and shrink info must be persisted by the caller.
func (c *Crawler) refineTotalLocked(ctx context.Context, totalPlayers int) (grown []int, shrunk bool) {
	if totalPlayers <= 0 {
		return nil, false
	}
	total := pageCount(totalPlayers)
	if total == c.totalPages {
		return nil, false
	}
	slog.InfoContext(ctx, "directory size changed",
		"server", c.server, "pages", total, "previous", c.totalPages)

	if total > c.totalPages {
		grown = make([]int, 0, total-c.totalPages)
		for p := c.totalPages; p < total; p++ {
			grown = append(grown, p)
		}
		if c.order == OrderRandom {
			rng := rand.New(rand.NewSource(orderSeed(c.server) + int64(total)))
			rng.Shuffle(len(grown), func(i, j int) {
				grown[i], grown[j] = grown[j], grown[i]
			})
		}
		if c.order == OrderBottomUp {
			c.pendingPages = append(append([]int{}, grown...), c.pendingPages...)
		} else {
			c.pendingPages = append(c.pendingPages, grown...)
		}
	} else {
		shrunk = true
		kept := c.pendingPages[:0]
		for _, p := range c.pendingPages {
			if p < total {
				kept = append(kept, p)
			}
		}
		c.pendingPages = kept
	}
	c.totalPages = total
	return grown, shrunk
}

func (c *Crawler) fetchDetail(ctx context.Context, t task) error {
	name := t.char

	ctx, span := tracer.Start(ctx, "Crawler.fetchDetail")
	defer span.End()
	span.SetAttributes(
		attribute.String("server", c.server),
		attribute.String("character", name),
	)

	char, err := request(c, ctx, func(ctx context.Context, s *Session) (sfapi.Character, error) {
		return s.Game.ViewPlayer(ctx, name)
	})
	if err != nil {
		span.RecordError(err)
		if sfapi.IsUnreachable(err) {
			// Deleted or renamed since the page listed it.
			slog.DebugContext(ctx, "character vanished", "server", c.server, "name", name)
			return c.skipDetail(ctx, name)
		}
		c.mu.Lock()
		c.retries[name]++
		attempts := c.retries[name]
		c.mu.Unlock()
		if attempts >= maxDetailRetries {
			slog.WarnContext(ctx, "giving up on character",
				"server", c.server, "name", name, "attempts", attempts, "err", err)
			return c.skipDetail(ctx, name)
		}
		span.SetStatus(codes.Error, "detail fetch failed")
		c.unclaim(t)
		return err
	}

	snap := scrapbook.Snapshot{
		UID:       char.UID,
		Name:      char.Name,
		Level:     char.Level,
		Stats:     char.Stats,
		Equipment: char.Equipment,
		FetchedAt: char.FetchedAt,
	}
	err = c.store.NoteSnapshot(ctx, c.server, name, snap)
	if err != nil {
		c.unclaim(t)
		return err
	}
	c.finishDetail(name)
	c.ranking.Upsert(snap)
	return nil
}

func (c *Crawler) skipDetail(ctx context.Context, name string) error {
	err := c.store.DropPending(ctx, c.server, name)
	if err != nil {
		c.mu.Lock()
		delete(c.inFlightChars, name)
		c.mu.Unlock()
		return err
	}
	c.finishDetail(name)
	return nil
}

func (c *Crawler) finishDetail(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.retries, name)
	delete(c.inFlightChars, name)
	c.recent.Add(name, struct{}{})
	for i, pending := range c.pendingChars {
		if pending == name {
			c.pendingChars = append(c.pendingChars[:i], c.pendingChars[i+1:]...)
			break
		}
	}
}

func (c *Crawler) dropPendingPageLocked(page int) {
	for i, pending := range c.pendingPages {
		if pending == page {
			c.pendingPages = append(c.pendingPages[:i], c.pendingPages[i+1:]...)
			return
		}
	}
}

// request runs one API call on a pooled session, honoring rate-limiter
// spacing and translating session failures into pool bookkeeping.
func request[T any](c *Crawler, ctx context.Context, call func(context.Context, *Session) (T, error)) (T, error) {
	var zero T
	session := c.pool.Acquire(time.Now())
	if session == nil {
		if c.pool.AllDisabled() {
			return zero, fmt.Errorf("%w on %s", ErrSessionsExhausted, c.server)
		}
		return zero, errNoSession
	}

	wait := c.limiter.Reserve(session.Game.Name(), time.Now())
	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.pool.Release(session, time.Time{})
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	out, err := call(ctx, session)
	switch {
	case err == nil:
		c.limiter.NoteSuccess()
		c.pool.Release(session, time.Time{})
	case sfapi.IsAuth(err):
		slog.WarnContext(ctx, "session rejected, disabling",
			"server", c.server, "session", session.Game.Name(), "err", err)
		c.pool.Disable(session)
	case sfapi.IsRateLimited(err):
		retryAfter := sfapi.RetryAfter(err)
		c.limiter.NoteRateLimited(retryAfter)
		hold := retryAfter
		if penalty := c.limiter.Penalty(); penalty > hold {
			hold = penalty
		}
		c.pool.Release(session, time.Now().Add(hold))
	default:
		c.pool.Release(session, time.Time{})
	}
	return out, err
}

var errNoSession = errors.New("no session available")

// ErrSessionsExhausted is returned by Step once every pooled session
// has been disabled. Nothing can make progress after that; individual
// session rejections only disable the offending session.
var ErrSessionsExhausted = errors.New("all sessions disabled")

func pageCount(players int) int {
	return (players + EntriesPerPage - 1) / EntriesPerPage
}
