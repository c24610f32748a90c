package scrapbook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"scrapbook-helper/lib/sfapi"
)

func snap(uid int64, name string, level int, items ...sfapi.ItemIdent) Snapshot {
	return Snapshot{UID: uid, Name: name, Level: level, Equipment: items}
}

func topNames(r *Ranking, n int) []string {
	var names []string
	for _, cand := range r.Top(n) {
		names = append(names, cand.Name)
	}
	return names
}

func TestRankingOrders(t *testing.T) {
	have := NewCollection([]sfapi.ItemIdent{"1:1:1", "1:1:2"})
	r := NewRanking(have, 0, 3)

	// x is missing two items, y one, z none
	r.Upsert(snap(1, "x", 50, "1:1:1", "1:1:3", "1:1:4"))
	r.Upsert(snap(2, "y", 10, "1:1:2", "1:1:3"))
	r.Upsert(snap(3, "z", 5))

	require.Equal(t, []string{"x", "y"}, topNames(r, 10))
	require.Equal(t, 3, r.Len())

	top := r.Top(1)
	require.Len(t, top, 1)
	require.Equal(t, 2, top[0].Score)
}

func TestRankingTieBreaks(t *testing.T) {
	r := NewRanking(nil, 0, 3)

	// equal scores order by level, then name, then uid
	r.Upsert(snap(1, "bbb", 20, "1:1:1"))
	r.Upsert(snap(2, "aaa", 10, "1:1:2"))
	r.Upsert(snap(3, "ccc", 10, "1:1:3"))
	require.Equal(t, []string{"aaa", "ccc", "bbb"}, topNames(r, 10))

	r.Upsert(snap(4, "aab", 10, "1:1:4"))
	require.Equal(t, []string{"aaa", "aab", "ccc", "bbb"}, topNames(r, 10))
}

func TestRankingUpsertReplaces(t *testing.T) {
	r := NewRanking(nil, 0, 3)

	r.Upsert(snap(1, "x", 10, "1:1:1", "1:1:2"))
	require.Equal(t, 2, r.Top(1)[0].Score)

	// a fresh snapshot of the same character wins, even out of order
	r.Upsert(snap(1, "x", 11, "1:1:1"))
	require.Equal(t, 1, r.Len())
	require.Equal(t, 1, r.Top(1)[0].Score)
	require.Equal(t, 11, r.Top(1)[0].Level)
}

func TestRankingExcludesZeroScore(t *testing.T) {
	have := NewCollection([]sfapi.ItemIdent{"1:1:1"})
	r := NewRanking(have, 0, 3)

	r.Upsert(snap(1, "owned", 10, "1:1:1"))
	r.Upsert(snap(2, "naked", 10))
	require.Empty(t, r.Top(10))
	require.Equal(t, 2, r.Len())
}

func TestRankingMaxLevel(t *testing.T) {
	r := NewRanking(nil, 20, 3)

	r.Upsert(snap(1, "weak", 15, "1:1:1"))
	r.Upsert(snap(2, "strong", 300, "1:1:2"))
	require.Equal(t, []string{"weak"}, topNames(r, 10))

	// 0 lifts the ceiling
	r.SetMaxLevel(0)
	require.Equal(t, []string{"weak", "strong"}, topNames(r, 10))
}

func TestRankingBlacklist(t *testing.T) {
	r := NewRanking(nil, 0, 3)
	r.Upsert(snap(1, "x", 10, "1:1:1"))

	require.Equal(t, 1, r.RecordLoss(1))
	require.Equal(t, 2, r.RecordLoss(1))
	require.Equal(t, []string{"x"}, topNames(r, 10))

	require.Equal(t, 3, r.RecordLoss(1))
	require.Empty(t, r.Top(10))

	// blacklist survives a fresh snapshot
	r.Upsert(snap(1, "x", 11, "1:1:1", "1:1:2"))
	require.Empty(t, r.Top(10))
}

func TestRankingAddItemsRescores(t *testing.T) {
	r := NewRanking(nil, 0, 3)
	r.Upsert(snap(1, "x", 10, "1:1:1"))
	r.Upsert(snap(2, "y", 10, "1:1:1", "1:1:2"))
	require.Equal(t, []string{"y", "x"}, topNames(r, 10))

	// winning against y collects both items; x drops to zero and out
	r.AddItems("1:1:1", "1:1:2")
	require.Empty(t, r.Top(10))
	require.True(t, r.Collection().Has("1:1:1"))
}

func TestRankingSetCollection(t *testing.T) {
	r := NewRanking(NewCollection([]sfapi.ItemIdent{"1:1:1"}), 0, 3)
	r.Upsert(snap(1, "x", 10, "1:1:1", "1:1:2"))
	require.Equal(t, 1, r.Top(1)[0].Score)

	r.SetCollection(NewCollection(nil))
	require.Equal(t, 2, r.Top(1)[0].Score)
}

func TestRankingRemove(t *testing.T) {
	r := NewRanking(nil, 0, 3)
	r.Upsert(snap(1, "x", 10, "1:1:1"))
	r.Remove(1)
	require.Empty(t, r.Top(10))
	require.Equal(t, 0, r.Len())

	// removing twice is fine
	r.Remove(1)
}

// Three candidates against a collection of {A, B}: one wears {A, C, D},
// one wears {B, C}, one wears nothing new. The first two rank by how
// many missing items they carry and the third never shows up.
func TestRankingScenario(t *testing.T) {
	have := NewCollection([]sfapi.ItemIdent{"1:1:1", "1:1:2"})
	r := NewRanking(have, 0, 3)

	r.Upsert(snap(1, "x", 10, "1:1:1", "1:1:3", "1:1:4"))
	r.Upsert(snap(2, "y", 10, "1:1:2", "1:1:3"))
	r.Upsert(snap(3, "z", 10, "1:1:1", "1:1:2"))

	require.Equal(t, []string{"x", "y"}, topNames(r, 10))
	require.Equal(t, 2, r.Top(1)[0].Score)
}
