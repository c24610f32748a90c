package hof

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scrapbook-helper/lib/sfapi"
	"scrapbook-helper/services/hof/db"
	"scrapbook-helper/services/scrapbook"
)

// ErrCorruptState marks persisted state that could not be decoded. The
// caller is expected to fail closed: report once and restart the crawl
// from the beginning.
var ErrCorruptState = errors.New("corrupt persisted crawl state")

// Store persists crawl progress so a crawl can resume across restarts
// with no page lost or fetched twice.
type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

// CrawlState is everything needed to continue an interrupted crawl.
type CrawlState struct {
	Server            string
	TotalPages        int
	PagesDone         int
	Order             Order
	PendingPages      []int
	PendingCharacters []string
	Snapshots         []scrapbook.Snapshot
}

// Load reads persisted progress. State that was never initialized
// comes back with an empty Order, so the caller's configured order is
// not shadowed by a default.
func (s Store) Load(ctx context.Context, server string) (CrawlState, error) {
	state := CrawlState{Server: server}

	cursor, err := s.qry.GetCursor(ctx, server)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return state, err
	}
	if err == nil {
		state.TotalPages = int(cursor.TotalPages)
		state.PagesDone = int(cursor.PagesDone)
		state.Order = Order(cursor.CrawlOrder)
		if !state.Order.valid() {
			return state, fmt.Errorf("%w: unknown crawl order %q", ErrCorruptState, cursor.CrawlOrder)
		}
	}

	pages, err := s.qry.ListPendingPages(ctx, server)
	if err != nil {
		return state, err
	}
	for _, page := range pages {
		state.PendingPages = append(state.PendingPages, int(page))
	}

	state.PendingCharacters, err = s.qry.ListPendingCharacters(ctx, server)
	if err != nil {
		return state, err
	}

	rows, err := s.qry.ListSnapshots(ctx, server)
	if err != nil {
		return state, err
	}
	for _, row := range rows {
		snap, err := snapshotFromRow(row)
		if err != nil {
			slog.WarnContext(ctx, "skipping undecodable snapshot",
				"server", server, "uid", row.Uid, "err", err)
			continue
		}
		state.Snapshots = append(state.Snapshots, snap)
	}

	return state, nil
}

// InitCrawl replaces the pending-page queue with a fresh page
// permutation and resets the cursor.
func (s Store) InitCrawl(ctx context.Context, server string, pages []int, order Order, totalPages int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.ClearPendingPages(ctx, server)
	if err != nil {
		return err
	}
	for i, page := range pages {
		err = txqry.AddPendingPage(ctx, db.AddPendingPageParams{
			Server:   server,
			Page:     int64(page),
			Position: int64(i),
		})
		if err != nil {
			return err
		}
	}
	err = txqry.UpsertCursor(ctx, db.UpsertCursorParams{
		Server:     server,
		TotalPages: int64(totalPages),
		PagesDone:  0,
		CrawlOrder: string(order),
		UpdatedAt:  time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// RefillPages replaces the pending-page queue without touching the
// cursor. Used when a restored crawl knows how many pages are done but
// not which ones remain.
func (s Store) RefillPages(ctx context.Context, server string, pages []int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.ClearPendingPages(ctx, server)
	if err != nil {
		return err
	}
	for i, page := range pages {
		err = txqry.AddPendingPage(ctx, db.AddPendingPageParams{
			Server:   server,
			Page:     int64(page),
			Position: int64(i),
		})
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PageNote is everything one fully parsed directory page changes in
// the persisted crawl state. GrownPages and Shrunk carry page-count
// refinements learned from the page's player total, so they commit in
// the same transaction as the cursor advance.
type PageNote struct {
	Page       int
	Characters []string
	TotalPages int
	Order      Order
	// GrownPages are newly discovered trailing pages. GrowFirst puts
	// them at the head of the queue instead of the tail.
	GrownPages []int
	GrowFirst  bool
	// Shrunk drops pending pages at or past TotalPages.
	Shrunk bool
}

// NotePage records a fully parsed directory page: its characters enter
// the pending-detail queue, the pending-page queue absorbs any page
// count refinement, and only then does the cursor advance. The cursor
// increments inside the database, so concurrent pages never persist
// the same count.
func (s Store) NotePage(ctx context.Context, server string, note PageNote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	for _, name := range note.Characters {
		err = txqry.AddPendingCharacter(ctx, db.AddPendingCharacterParams{
			Server: server,
			Name:   name,
		})
		if err != nil {
			return err
		}
	}
	err = txqry.DeletePendingPage(ctx, db.DeletePendingPageParams{
		Server: server,
		Page:   int64(note.Page),
	})
	if err != nil {
		return err
	}
	if note.Shrunk {
		err = txqry.DeletePendingPagesFrom(ctx, db.DeletePendingPagesFromParams{
			Server: server,
			Page:   int64(note.TotalPages),
		})
		if err != nil {
			return err
		}
	}
	if len(note.GrownPages) > 0 {
		err = s.addGrownPages(ctx, txqry, server, note.GrownPages, note.GrowFirst)
		if err != nil {
			return err
		}
	}
	err = txqry.AdvanceCursor(ctx, db.AdvanceCursorParams{
		TotalPages: int64(note.TotalPages),
		CrawlOrder: string(note.Order),
		UpdatedAt:  time.Now().Unix(),
		Server:     server,
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s Store) addGrownPages(ctx context.Context, txqry *db.Queries, server string, pages []int, first bool) error {
	var base int64
	var err error
	if first {
		base, err = txqry.MinPendingPagePosition(ctx, server)
		base -= int64(len(pages))
	} else {
		base, err = txqry.MaxPendingPagePosition(ctx, server)
		base++
	}
	if err != nil {
		return err
	}
	for i, page := range pages {
		err = txqry.AddPendingPage(ctx, db.AddPendingPageParams{
			Server:   server,
			Page:     int64(page),
			Position: base + int64(i),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// NoteSnapshot stores a fetched character detail and clears its
// pending-queue entry in one transaction.
func (s Store) NoteSnapshot(ctx context.Context, server, pendingName string, snap scrapbook.Snapshot) error {
	equipment, err := json.Marshal(snap.Equipment)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.UpsertSnapshot(ctx, db.UpsertSnapshotParams{
		Server:    server,
		Uid:       snap.UID,
		Name:      snap.Name,
		Level:     int64(snap.Level),
		Stats:     int64(snap.Stats),
		Equipment: string(equipment),
		FetchedAt: snap.FetchedAt.Unix(),
	})
	if err != nil {
		return err
	}
	err = txqry.DeletePendingCharacter(ctx, db.DeletePendingCharacterParams{
		Server: server,
		Name:   pendingName,
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// DropPending removes a character from the pending queue without a
// snapshot, e.g. after it vanished or exhausted its retries.
func (s Store) DropPending(ctx context.Context, server, name string) error {
	return s.qry.DeletePendingCharacter(ctx, db.DeletePendingCharacterParams{
		Server: server,
		Name:   name,
	})
}

// Clear wipes all persisted crawl state for a server.
func (s Store) Clear(ctx context.Context, server string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.DeleteCursor(ctx, server)
	if err != nil {
		return err
	}
	err = txqry.ClearPendingPages(ctx, server)
	if err != nil {
		return err
	}
	err = txqry.ClearPendingCharacters(ctx, server)
	if err != nil {
		return err
	}
	err = txqry.ClearSnapshots(ctx, server)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func snapshotFromRow(row db.CharacterSnapshot) (scrapbook.Snapshot, error) {
	var equipment []sfapi.ItemIdent
	err := json.Unmarshal([]byte(row.Equipment), &equipment)
	if err != nil {
		return scrapbook.Snapshot{}, fmt.Errorf("%w: %s", ErrCorruptState, err)
	}
	return scrapbook.Snapshot{
		UID:       row.Uid,
		Name:      row.Name,
		Level:     int(row.Level),
		Stats:     int(row.Stats),
		Equipment: equipment,
		FetchedAt: time.Unix(row.FetchedAt, 0),
	}, nil
}
