package hof

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"scrapbook-helper/lib/sfapi"
	"scrapbook-helper/services/hof/db"
	"scrapbook-helper/services/scrapbook"
)

// Backup bundles crawl progress and all fetched characters into a
// single portable file.
type Backup struct {
	Server     string            `json:"server"`
	TotalPages int               `json:"total_pages"`
	PagesDone  int               `json:"current_page"`
	Order      Order             `json:"crawl_order"`
	Characters []backupCharacter `json:"characters"`
	ExportedAt time.Time         `json:"export_time"`
}

type backupCharacter struct {
	UID       int64             `json:"uid"`
	Name      string            `json:"name"`
	Level     int               `json:"level"`
	Stats     int               `json:"stats"`
	Equipment []sfapi.ItemIdent `json:"equipment"`
	FetchedAt int64             `json:"fetched_at"`
}

// ExportBackup writes the server's crawl state to path. Files ending in
// .zhof are zlib compressed, anything else is written as plain JSON.
func (s Store) ExportBackup(ctx context.Context, server, path string) error {
	state, err := s.Load(ctx, server)
	if err != nil {
		return err
	}

	backup := Backup{
		Server:     server,
		TotalPages: state.TotalPages,
		PagesDone:  state.PagesDone,
		Order:      state.Order,
		ExportedAt: time.Now(),
	}
	for _, snap := range state.Snapshots {
		backup.Characters = append(backup.Characters, backupCharacter{
			UID:       snap.UID,
			Name:      snap.Name,
			Level:     snap.Level,
			Stats:     snap.Stats,
			Equipment: snap.Equipment,
			FetchedAt: snap.FetchedAt.Unix(),
		})
	}

	raw, err := json.Marshal(backup)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".zhof") {
		var buf bytes.Buffer
		writer := zlib.NewWriter(&buf)
		_, err = writer.Write(raw)
		if err != nil {
			return err
		}
		err = writer.Close()
		if err != nil {
			return err
		}
		raw = buf.Bytes()
	}
	return os.WriteFile(path, raw, 0o644)
}

// RestoreBackup merges a backup file into the store. Compressed .zhof
// and legacy uncompressed .hof files are both accepted; the format is
// sniffed rather than trusted from the extension.
func (s Store) RestoreBackup(ctx context.Context, server, path string) (CrawlState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return CrawlState{}, err
	}
	backup, err := decodeBackup(raw)
	if err != nil {
		return CrawlState{}, err
	}

	order := backup.Order
	if !order.valid() {
		order = OrderRandom
	}
	err = s.InitCrawl(ctx, server, nil, order, backup.TotalPages)
	if err != nil {
		return CrawlState{}, err
	}
	now := time.Now().Unix()
	for _, char := range backup.Characters {
		fetchedAt := char.FetchedAt
		if fetchedAt == 0 {
			fetchedAt = now
		}
		err = s.NoteSnapshot(ctx, server, char.Name, scrapbook.Snapshot{
			UID:       char.UID,
			Name:      char.Name,
			Level:     char.Level,
			Stats:     char.Stats,
			Equipment: char.Equipment,
			FetchedAt: time.Unix(fetchedAt, 0),
		})
		if err != nil {
			return CrawlState{}, err
		}
	}
	err = s.qry.UpsertCursor(ctx, db.UpsertCursorParams{
		Server:     server,
		TotalPages: int64(backup.TotalPages),
		PagesDone:  int64(backup.PagesDone),
		CrawlOrder: string(order),
		UpdatedAt:  time.Now().Unix(),
	})
	if err != nil {
		return CrawlState{}, err
	}
	return s.Load(ctx, server)
}

func decodeBackup(raw []byte) (Backup, error) {
	var backup Backup
	reader, err := zlib.NewReader(bytes.NewReader(raw))
	if err == nil {
		raw, err = io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return backup, fmt.Errorf("%w: %s", ErrCorruptState, err)
		}
	}
	err = json.Unmarshal(raw, &backup)
	if err != nil {
		return backup, fmt.Errorf("%w: %s", ErrCorruptState, err)
	}
	return backup, nil
}
