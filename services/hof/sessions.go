package hof

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"

	"scrapbook-helper/lib/sfapi"
)

var tracer = otel.Tracer("hof")

// MaxScouts caps how many throwaway crawl accounts a pool will manage
// per server.
const MaxScouts = 10

// GameSession is the slice of the game API the crawler needs. The
// primary account's session implements more, the pool does not care.
type GameSession interface {
	Name() string
	HallOfFamePage(ctx context.Context, page int) (sfapi.HallOfFamePage, error)
	ViewPlayer(ctx context.Context, name string) (sfapi.Character, error)
}

type Role int

const (
	RolePrimary Role = iota
	RoleScout
)

// Session wraps a logged-in account with the pool's bookkeeping. A
// session serves at most one request at a time.
type Session struct {
	Game GameSession
	Role Role

	notBefore time.Time
	inUse     bool
	disabled  bool
}

// Pool hands out idle sessions to crawler workers. Acquire never
// blocks: a caller that gets nothing backs off and retries on its next
// step.
type Pool struct {
	mu       sync.Mutex
	sessions []*Session
}

func NewPool() *Pool {
	return &Pool{}
}

// Add registers a logged-in session. Scouts beyond MaxScouts are
// rejected.
func (p *Pool) Add(game GameSession, role Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if role == RoleScout && p.scoutCountLocked() >= MaxScouts {
		return fmt.Errorf("scout limit of %d reached", MaxScouts)
	}
	p.sessions = append(p.sessions, &Session{Game: game, Role: role})
	return nil
}

// Acquire returns an idle, enabled session whose cooldown has passed,
// or nil when none is available right now. Scouts are preferred so the
// primary account keeps its fight cooldown free.
func (p *Pool) Acquire(now time.Time) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	var primary *Session
	for _, s := range p.sessions {
		if s.inUse || s.disabled || now.Before(s.notBefore) {
			continue
		}
		if s.Role == RoleScout {
			s.inUse = true
			return s
		}
		if primary == nil {
			primary = s
		}
	}
	if primary != nil {
		primary.inUse = true
	}
	return primary
}

// Release returns a session to the pool. notBefore defers its next use,
// typically set by the rate limiter.
func (p *Pool) Release(s *Session, notBefore time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.inUse = false
	if notBefore.After(s.notBefore) {
		s.notBefore = notBefore
	}
}

// Disable takes a session out of rotation permanently, e.g. after an
// authentication failure. The remaining sessions keep working.
func (p *Pool) Disable(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.inUse = false
	s.disabled = true
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *Pool) DisabledCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, s := range p.sessions {
		if s.disabled {
			count++
		}
	}
	return count
}

// AllDisabled reports whether no session can ever serve again.
func (p *Pool) AllDisabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sessions {
		if !s.disabled {
			return false
		}
	}
	return len(p.sessions) > 0
}

func (p *Pool) scoutCountLocked() int {
	count := 0
	for _, s := range p.sessions {
		if s.Role == RoleScout {
			count++
		}
	}
	return count
}

// ScoutCredentials derives a login for a generated crawl account. The
// password is the name reversed, so knowing a scout's name is enough to
// log back into it after a restart.
func ScoutCredentials(name string) (string, string) {
	runes := []rune(name)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return name, string(runes)
}

// NewScoutName generates a fresh lowercase account name.
func NewScoutName() (string, error) {
	suffix, err := random.String(8)
	if err != nil {
		return "", err
	}
	return "sb" + strings.ToLower(suffix), nil
}

// FillScouts logs in (or registers) scout accounts until the pool holds
// want of them. Known names are tried first so restarts reuse accounts
// instead of registering new ones; failures are logged and skipped.
func FillScouts(ctx context.Context, pool *Pool, client *sfapi.Client, known []string, want int) []string {
	ctx, span := tracer.Start(ctx, "hof.FillScouts")
	defer span.End()

	if want > MaxScouts {
		want = MaxScouts
	}
	var active []string

	have := 0
	for _, name := range known {
		if have >= want {
			break
		}
		user, pass := ScoutCredentials(name)
		session, _, err := client.Login(ctx, user, pass)
		if err != nil {
			slog.WarnContext(ctx, "scout login failed", "name", name, "err", err)
			continue
		}
		if pool.Add(session, RoleScout) != nil {
			break
		}
		active = append(active, name)
		have++
	}
	for have < want {
		name, err := NewScoutName()
		if err != nil {
			slog.WarnContext(ctx, "scout name generation failed", "err", err)
			break
		}
		user, pass := ScoutCredentials(name)
		session, _, err := client.LoginOrRegister(ctx, user, pass)
		if err != nil {
			slog.WarnContext(ctx, "scout registration failed", "name", name, "err", err)
			break
		}
		if pool.Add(session, RoleScout) != nil {
			break
		}
		active = append(active, name)
		have++
	}
	return active
}
