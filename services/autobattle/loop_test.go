package autobattle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scrapbook-helper/lib/sfapi"
	"scrapbook-helper/lib/telemetry"
	"scrapbook-helper/services/scrapbook"
)

type fakeFighter struct {
	results map[string]sfapi.FightResult
	errs    map[string]error
	fights  []string
	own     sfapi.OwnCharacter
}

func (f *fakeFighter) Name() string { return "hero" }

func (f *fakeFighter) Fight(ctx context.Context, name string) (sfapi.FightResult, error) {
	f.fights = append(f.fights, name)
	if err, ok := f.errs[name]; ok {
		return sfapi.FightResult{}, err
	}
	return f.results[name], nil
}

func (f *fakeFighter) UpdatePlayer(ctx context.Context) (sfapi.OwnCharacter, error) {
	return f.own, nil
}

func snap(uid int64, name string, items ...sfapi.ItemIdent) scrapbook.Snapshot {
	return scrapbook.Snapshot{UID: uid, Name: name, Level: 10, Equipment: items}
}

func TestLoopDisabledDoesNothing(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:services/autobattle")()

	ranking := scrapbook.NewRanking(nil, 0, 3)
	ranking.Upsert(snap(1, "x", "1:1:1"))
	fighter := &fakeFighter{}
	loop := NewLoop(fighter, ranking, time.Time{})

	result, _, err := loop.Tick(context.Background(), time.Now())
	require.NoError(t, err)
	require.False(t, result.Fought)
	require.Empty(t, fighter.fights)
}

func TestLoopRespectsCooldown(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:services/autobattle")()

	ranking := scrapbook.NewRanking(nil, 0, 3)
	ranking.Upsert(snap(1, "x", "1:1:1"))

	now := time.Unix(2000, 0)
	cooldown := now.Add(time.Hour)
	fighter := &fakeFighter{
		results: map[string]sfapi.FightResult{
			"x": {Won: false, NextFreeFight: cooldown.Add(time.Hour)},
		},
	}
	loop := NewLoop(fighter, ranking, cooldown)
	loop.Enable()

	// still cooling down: no fight, wait until the window opens
	result, wait, err := loop.Tick(context.Background(), now)
	require.NoError(t, err)
	require.False(t, result.Fought)
	require.Equal(t, time.Hour, wait)
	require.Empty(t, fighter.fights)

	// window open: exactly one fight, cooldown from the server
	result, _, err = loop.Tick(context.Background(), cooldown)
	require.NoError(t, err)
	require.True(t, result.Fought)
	require.Len(t, fighter.fights, 1)

	// immediately ticking again must not fight a second time
	result, _, err = loop.Tick(context.Background(), cooldown)
	require.NoError(t, err)
	require.False(t, result.Fought)
	require.Len(t, fighter.fights, 1)
}

func TestLoopWinMergesEquipment(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:services/autobattle")()

	ranking := scrapbook.NewRanking(nil, 0, 3)
	ranking.Upsert(snap(1, "x", "1:1:1", "1:1:2"))
	ranking.Upsert(snap(2, "y", "1:1:1"))

	now := time.Unix(2000, 0)
	fighter := &fakeFighter{
		results: map[string]sfapi.FightResult{
			"x": {Won: true, NextFreeFight: now.Add(time.Hour)},
		},
	}
	loop := NewLoop(fighter, ranking, time.Time{})
	loop.Enable()

	result, _, err := loop.Tick(context.Background(), now)
	require.NoError(t, err)
	require.True(t, result.Won)
	require.Equal(t, "x", result.Target)
	require.Equal(t, 2, result.NewItems)

	// both of x's items are collected now; y scores zero and drops out
	require.True(t, ranking.Collection().Has("1:1:1"))
	require.Empty(t, ranking.Top(10))
	require.Equal(t, now.Add(time.Hour), loop.NextFreeFight())
}

func TestLoopLossBlacklistsEventually(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:services/autobattle")()

	ranking := scrapbook.NewRanking(nil, 0, 2)
	ranking.Upsert(snap(1, "x", "1:1:1"))

	fighter := &fakeFighter{
		results: map[string]sfapi.FightResult{"x": {Won: false}},
	}
	loop := NewLoop(fighter, ranking, time.Time{})
	loop.Enable()

	now := time.Unix(2000, 0)
	_, _, err := loop.Tick(context.Background(), now)
	require.NoError(t, err)
	require.NotEmpty(t, ranking.Top(10))

	_, _, err = loop.Tick(context.Background(), loop.NextFreeFight())
	require.NoError(t, err)

	// two losses hit the threshold; the target is blacklisted
	require.Empty(t, ranking.Top(10))
	require.Len(t, fighter.fights, 2)
}

func TestLoopRemovesUnreachableTargets(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:services/autobattle")()

	ranking := scrapbook.NewRanking(nil, 0, 3)
	ranking.Upsert(snap(1, "gone", "1:1:1"))
	ranking.Upsert(snap(2, "next", "1:1:2"))

	fighter := &fakeFighter{
		errs: map[string]error{
			"gone": &sfapi.Error{Kind: sfapi.KindUnreachable},
		},
		results: map[string]sfapi.FightResult{"next": {Won: false}},
	}
	loop := NewLoop(fighter, ranking, time.Time{})
	loop.Enable()

	now := time.Unix(2000, 0)
	result, wait, err := loop.Tick(context.Background(), now)
	require.NoError(t, err)
	require.False(t, result.Fought)
	require.Equal(t, time.Duration(0), wait)
	require.Equal(t, 1, ranking.Len())

	// the free fight was not consumed; the next tick attacks right away
	result, _, err = loop.Tick(context.Background(), now)
	require.NoError(t, err)
	require.True(t, result.Fought)
	require.Equal(t, "next", result.Target)
}
