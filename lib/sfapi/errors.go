package sfapi

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed game request so callers can decide whether
// to back off, retry, drop the target or disable the session.
type Kind int

const (
	KindTransient Kind = iota
	KindAuth
	KindRateLimited
	KindUnreachable
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindUnreachable:
		return "unreachable"
	default:
		return "transient"
	}
}

type Error struct {
	Kind Kind
	// RetryAfter is only set for KindRateLimited, and only when the
	// server announced a backoff interval.
	RetryAfter time.Duration
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("game request failed (%s)", e.Kind)
	}
	return fmt.Sprintf("game request failed (%s): %s", e.Kind, e.Message)
}

// KindOf extracts the classification from any error returned by this
// package. Errors that did not come from the game server count as
// transient network failures.
func KindOf(err error) Kind {
	var gameErr *Error
	if errors.As(err, &gameErr) {
		return gameErr.Kind
	}
	return KindTransient
}

func IsAuth(err error) bool        { return err != nil && KindOf(err) == KindAuth }
func IsRateLimited(err error) bool { return err != nil && KindOf(err) == KindRateLimited }
func IsUnreachable(err error) bool { return err != nil && KindOf(err) == KindUnreachable }

// RetryAfter reports the server-announced backoff, or zero.
func RetryAfter(err error) time.Duration {
	var gameErr *Error
	if errors.As(err, &gameErr) {
		return gameErr.RetryAfter
	}
	return 0
}
