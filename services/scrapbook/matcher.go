package scrapbook

import (
	"time"

	"scrapbook-helper/lib/sfapi"
)

// Snapshot is a point-in-time capture of one opponent's equipped items.
// It is never mutated; a newer capture of the same character replaces
// the older one wholesale.
type Snapshot struct {
	UID       int64
	Name      string
	Level     int
	Stats     int
	Equipment []sfapi.ItemIdent
	FetchedAt time.Time
}

// Collection is the set of item idents the player already owns.
type Collection map[sfapi.ItemIdent]struct{}

func NewCollection(items []sfapi.ItemIdent) Collection {
	c := make(Collection, len(items))
	for _, item := range items {
		c[item] = struct{}{}
	}
	return c
}

func (c Collection) Has(item sfapi.ItemIdent) bool {
	_, ok := c[item]
	return ok
}

func (c Collection) Add(items ...sfapi.ItemIdent) {
	for _, item := range items {
		c[item] = struct{}{}
	}
}

func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for item := range c {
		out[item] = struct{}{}
	}
	return out
}

// countable reports whether an item occupies a scrapbook slot at all.
// Models >= 100 are event reskins that never do.
func countable(item sfapi.ItemIdent) bool {
	model := item.ModelID()
	return model >= 0 && model < 100
}

// Score counts the scrapbook slots the snapshot would fill: the number
// of distinct countable idents worn by the character that are absent
// from the collection. It is a pure function and must be re-evaluated
// whenever either input changes.
func Score(snap Snapshot, have Collection) int {
	score := 0
	seen := make(map[sfapi.ItemIdent]struct{}, len(snap.Equipment))
	for _, item := range snap.Equipment {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		if !countable(item) || have.Has(item) {
			continue
		}
		score++
	}
	return score
}
