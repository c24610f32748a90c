// Package autobattle drives free fights against the best scrapbook
// targets as the primary account's cooldown allows.
package autobattle

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"scrapbook-helper/lib/sfapi"
	"scrapbook-helper/services/scrapbook"
)

var tracer = otel.Tracer("autobattle")

// Fighter is the part of the primary account's session the loop uses.
type Fighter interface {
	Name() string
	Fight(ctx context.Context, name string) (sfapi.FightResult, error)
	UpdatePlayer(ctx context.Context) (sfapi.OwnCharacter, error)
}

type State int

const (
	StateDisabled State = iota
	StateArmed
	StateAttacking
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateArmed:
		return "armed"
	case StateAttacking:
		return "attacking"
	}
	return "unknown"
}

// Result is what one Tick did, for logging and notifications.
type Result struct {
	Fought   bool
	Won      bool
	Target   string
	NewItems int
}

// Loop attacks the ranking's best candidate whenever the free-fight
// cooldown is open. At most one attack is ever in flight, and two
// attacks never happen inside one cooldown window.
//
// Loop is driven from a single goroutine; it is not safe for
// concurrent use.
type Loop struct {
	fighter Fighter
	ranking *scrapbook.Ranking

	state         State
	nextFreeFight time.Time
}

func NewLoop(fighter Fighter, ranking *scrapbook.Ranking, nextFreeFight time.Time) *Loop {
	return &Loop{
		fighter:       fighter,
		ranking:       ranking,
		nextFreeFight: nextFreeFight,
	}
}

func (l *Loop) Enable()  { l.state = StateArmed }
func (l *Loop) Disable() { l.state = StateDisabled }

func (l *Loop) State() State             { return l.state }
func (l *Loop) NextFreeFight() time.Time { return l.nextFreeFight }

// Tick runs at most one attack. It returns how long the caller should
// wait before the next Tick.
func (l *Loop) Tick(ctx context.Context, now time.Time) (Result, time.Duration, error) {
	if l.state == StateDisabled {
		return Result{}, time.Second, nil
	}
	if now.Before(l.nextFreeFight) {
		return Result{}, l.nextFreeFight.Sub(now), nil
	}

	top := l.ranking.Top(1)
	if len(top) == 0 {
		// Nothing worth attacking yet; the crawler may still find
		// someone.
		return Result{}, 5 * time.Second, nil
	}
	target := top[0]

	ctx, span := tracer.Start(ctx, "Loop.Tick")
	defer span.End()
	span.SetAttributes(
		attribute.String("target", target.Name),
		attribute.Int("score", target.Score),
	)

	l.state = StateAttacking
	result, err := l.fighter.Fight(ctx, target.Name)
	l.state = StateArmed

	if err != nil {
		span.RecordError(err)
		if sfapi.IsUnreachable(err) {
			slog.InfoContext(ctx, "target gone, removing", "target", target.Name)
			l.ranking.Remove(target.UID)
			return Result{}, 0, nil
		}
		span.SetStatus(codes.Error, "fight failed")
		return Result{}, 5 * time.Second, err
	}

	// The server owns the cooldown clock.
	if result.NextFreeFight.After(l.nextFreeFight) {
		l.nextFreeFight = result.NextFreeFight
	} else {
		l.nextFreeFight = now.Add(10 * time.Minute)
	}

	out := Result{Fought: true, Won: result.Won, Target: target.Name}
	if result.Won {
		out.NewItems = l.wonAgainst(ctx, target)
	} else {
		losses := l.ranking.RecordLoss(target.UID)
		slog.InfoContext(ctx, "lost fight",
			"target", target.Name, "losses", losses)
	}
	return out, l.nextFreeFight.Sub(now), nil
}

// wonAgainst folds the beaten target's equipment into the collection
// and re-reads the account so the collection stays authoritative.
func (l *Loop) wonAgainst(ctx context.Context, target scrapbook.Candidate) int {
	before := l.ranking.Collection()
	newItems := 0
	for _, item := range target.Equipment {
		if !before.Has(item) {
			newItems++
		}
	}
	l.ranking.AddItems(target.Equipment...)
	slog.InfoContext(ctx, "won fight",
		"target", target.Name, "new_items", newItems)

	own, err := l.fighter.UpdatePlayer(ctx)
	if err != nil {
		slog.WarnContext(ctx, "post-fight account refresh failed", "err", err)
		return newItems
	}
	if len(own.Scrapbook) > 0 {
		l.ranking.SetCollection(scrapbook.NewCollection(own.Scrapbook))
	}
	return newItems
}
