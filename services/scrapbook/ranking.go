package scrapbook

import (
	"sort"
	"strings"
	"sync"

	"scrapbook-helper/lib/sfapi"
)

// Candidate is a snapshot paired with its score against the collection
// the ranking currently holds. Seq increases with every upsert and acts
// as a freshness marker.
type Candidate struct {
	Snapshot
	Score int
	Seq   uint64
}

// Ranking maintains the live ordering of crawled characters by how many
// new scrapbook items they would yield. One entry per character; a
// fresh snapshot of a known character replaces the old one.
//
// Candidates are ordered by (score desc, level asc, name asc, uid asc)
// so the easiest fight among equals comes first.
type Ranking struct {
	mu sync.RWMutex

	players map[int64]Snapshot
	// equipment is the inverted index: item ident -> uids wearing it.
	// It drives the battle-order planner's shared-item discounting.
	equipment map[sfapi.ItemIdent]map[int64]struct{}

	have          Collection
	maxLevel      int
	lossThreshold int
	losses        map[int64]int

	order []Candidate
	seq   uint64
}

// NewRanking creates a ranking against the given collection. maxLevel
// bounds candidate level (0 means unbounded); lossThreshold is the
// number of lost fights after which a character is blacklisted.
func NewRanking(have Collection, maxLevel, lossThreshold int) *Ranking {
	if have == nil {
		have = Collection{}
	}
	if lossThreshold < 1 {
		lossThreshold = 1
	}
	return &Ranking{
		players:       map[int64]Snapshot{},
		equipment:     map[sfapi.ItemIdent]map[int64]struct{}{},
		have:          have,
		maxLevel:      maxLevel,
		lossThreshold: lossThreshold,
		losses:        map[int64]int{},
	}
}

func candidateLess(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c < 0
	}
	return a.UID < b.UID
}

// Upsert inserts or replaces the snapshot for one character and places
// it at its ordered position. Out-of-order arrival is fine; the newest
// upsert always wins.
func (r *Ranking) Upsert(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.players[snap.UID]; ok {
		r.unindexLocked(old)
		r.removeOrderedLocked(snap.UID)
	}
	r.players[snap.UID] = snap
	for _, item := range snap.Equipment {
		wearers, ok := r.equipment[item]
		if !ok {
			wearers = map[int64]struct{}{}
			r.equipment[item] = wearers
		}
		wearers[snap.UID] = struct{}{}
	}

	r.seq++
	r.insertOrderedLocked(snap)
}

// Remove drops a character entirely, e.g. after the target turned out
// to be unreachable.
func (r *Ranking) Remove(uid int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.players[uid]
	if !ok {
		return
	}
	r.unindexLocked(old)
	r.removeOrderedLocked(uid)
	delete(r.players, uid)
}

// RecordLoss counts a lost fight against the character and returns the
// new loss count. Once the count reaches the blacklist threshold the
// character no longer appears in Top.
func (r *Ranking) RecordLoss(uid int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.losses[uid]++
	n := r.losses[uid]
	if n >= r.lossThreshold {
		r.removeOrderedLocked(uid)
	}
	return n
}

// SetCollection swaps in a new owned-item set and rescores everything.
// Top never serves scores computed against a previous collection.
func (r *Ranking) SetCollection(have Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.have = have
	r.rebuildLocked()
}

// AddItems merges freshly acquired items (e.g. a defeated target's
// equipment) into the collection and rescores.
func (r *Ranking) AddItems(items ...sfapi.ItemIdent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.have.Add(items...)
	r.rebuildLocked()
}

// SetMaxLevel changes the level ceiling and rescores.
func (r *Ranking) SetMaxLevel(maxLevel int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxLevel = maxLevel
	r.rebuildLocked()
}

// Collection returns a copy of the collection currently scored against.
func (r *Ranking) Collection() Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.have.Clone()
}

// Top returns the best n candidates without mutating the ranking.
func (r *Ranking) Top(n int) []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > len(r.order) {
		n = len(r.order)
	}
	out := make([]Candidate, n)
	copy(out, r.order[:n])
	return out
}

// Len reports how many characters are known, eligible or not.
func (r *Ranking) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

func (r *Ranking) unindexLocked(snap Snapshot) {
	for _, item := range snap.Equipment {
		wearers := r.equipment[item]
		delete(wearers, snap.UID)
		if len(wearers) == 0 {
			delete(r.equipment, item)
		}
	}
}

func (r *Ranking) eligibleLocked(snap Snapshot, score int) bool {
	if score <= 0 {
		return false
	}
	if r.maxLevel > 0 && snap.Level > r.maxLevel {
		return false
	}
	return r.losses[snap.UID] < r.lossThreshold
}

// insertOrderedLocked places the snapshot at its sorted position. The
// slice shifts instead of re-sorting, so steady-state upserts stay
// cheap even with a large directory.
func (r *Ranking) insertOrderedLocked(snap Snapshot) {
	score := Score(snap, r.have)
	if !r.eligibleLocked(snap, score) {
		return
	}
	cand := Candidate{Snapshot: snap, Score: score, Seq: r.seq}
	at := sort.Search(len(r.order), func(i int) bool {
		return candidateLess(cand, r.order[i])
	})
	r.order = append(r.order, Candidate{})
	copy(r.order[at+1:], r.order[at:])
	r.order[at] = cand
}

func (r *Ranking) removeOrderedLocked(uid int64) {
	for i, cand := range r.order {
		if cand.UID == uid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// rebuildLocked rescores every known character against the current
// collection and rebuilds the order. Used whenever the collection or
// the eligibility policy changes, since most scores move at once.
func (r *Ranking) rebuildLocked() {
	r.seq++
	r.order = r.order[:0]
	for _, snap := range r.players {
		score := Score(snap, r.have)
		if !r.eligibleLocked(snap, score) {
			continue
		}
		r.order = append(r.order, Candidate{Snapshot: snap, Score: score, Seq: r.seq})
	}
	sort.Slice(r.order, func(i, j int) bool {
		return candidateLess(r.order[i], r.order[j])
	})
}
