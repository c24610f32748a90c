package hof

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scrapbook-helper/lib/sfapi"
)

type stubSession struct {
	name string
}

func (s stubSession) Name() string { return s.name }
func (s stubSession) HallOfFamePage(ctx context.Context, page int) (sfapi.HallOfFamePage, error) {
	return sfapi.HallOfFamePage{}, nil
}
func (s stubSession) ViewPlayer(ctx context.Context, name string) (sfapi.Character, error) {
	return sfapi.Character{}, nil
}

func TestPoolPrefersScouts(t *testing.T) {
	pool := NewPool()
	require.NoError(t, pool.Add(stubSession{"primary"}, RolePrimary))
	require.NoError(t, pool.Add(stubSession{"scout"}, RoleScout))

	now := time.Now()
	s := pool.Acquire(now)
	require.NotNil(t, s)
	require.Equal(t, "scout", s.Game.Name())

	// with the scout busy the primary still serves
	s2 := pool.Acquire(now)
	require.NotNil(t, s2)
	require.Equal(t, "primary", s2.Game.Name())

	require.Nil(t, pool.Acquire(now))
}

func TestPoolReleaseWithCooldown(t *testing.T) {
	pool := NewPool()
	require.NoError(t, pool.Add(stubSession{"scout"}, RoleScout))

	now := time.Now()
	s := pool.Acquire(now)
	require.NotNil(t, s)
	pool.Release(s, now.Add(time.Minute))

	require.Nil(t, pool.Acquire(now))
	require.Nil(t, pool.Acquire(now.Add(30*time.Second)))
	require.NotNil(t, pool.Acquire(now.Add(time.Minute)))
}

func TestPoolDisable(t *testing.T) {
	pool := NewPool()
	require.NoError(t, pool.Add(stubSession{"a"}, RoleScout))
	require.NoError(t, pool.Add(stubSession{"b"}, RoleScout))

	now := time.Now()
	s := pool.Acquire(now)
	require.NotNil(t, s)
	pool.Disable(s)

	require.Equal(t, 1, pool.DisabledCount())
	require.False(t, pool.AllDisabled())

	s2 := pool.Acquire(now)
	require.NotNil(t, s2)
	require.NotEqual(t, s.Game.Name(), s2.Game.Name())
	pool.Disable(s2)

	require.True(t, pool.AllDisabled())
	require.Nil(t, pool.Acquire(now))
}

func TestPoolScoutLimit(t *testing.T) {
	pool := NewPool()
	for i := 0; i < MaxScouts; i++ {
		require.NoError(t, pool.Add(stubSession{fmt.Sprintf("scout%d", i)}, RoleScout))
	}
	require.Error(t, pool.Add(stubSession{"overflow"}, RoleScout))
	// the primary is not subject to the scout cap
	require.NoError(t, pool.Add(stubSession{"primary"}, RolePrimary))
}

func TestScoutCredentials(t *testing.T) {
	user, pass := ScoutCredentials("abc123")
	require.Equal(t, "abc123", user)
	require.Equal(t, "321cba", pass)
}

func TestNewScoutName(t *testing.T) {
	a, err := NewScoutName()
	require.NoError(t, err)
	b, err := NewScoutName()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.Greater(t, len(a), 2)
}
