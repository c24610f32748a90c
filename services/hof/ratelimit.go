package hof

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// Baseline spacing between two requests on the same session.
	defaultSessionInterval = 250 * time.Millisecond
	// Server-wide floor across all sessions combined.
	defaultServerInterval = 50 * time.Millisecond

	backoffCap   = 2 * time.Minute
	recoveryRuns = 10
)

// Limiter spaces requests per session and per server. Being told to
// slow down by the server stretches the spacing multiplicatively; a
// run of successes lets it decay back toward the baseline.
type Limiter struct {
	mu sync.Mutex

	sessionInterval time.Duration
	serverInterval  time.Duration

	backoff    *backoff.ExponentialBackOff
	penalty    time.Duration
	successRun int

	perSession map[string]time.Time
	serverNext time.Time
}

func NewLimiter() *Limiter {
	return NewLimiterIntervals(defaultSessionInterval, defaultServerInterval)
}

func NewLimiterIntervals(sessionInterval, serverInterval time.Duration) *Limiter {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = sessionInterval
	exp.MaxInterval = backoffCap
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &Limiter{
		sessionInterval: sessionInterval,
		serverInterval:  serverInterval,
		backoff:         exp,
		perSession:      map[string]time.Time{},
	}
}

// Reserve claims the next request slot for a session. The returned
// duration is how long the caller must wait before sending; zero means
// it may send immediately. The slot is claimed either way, so callers
// that decide not to send simply lose it.
func (l *Limiter) Reserve(session string, now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	at := now
	if next, ok := l.perSession[session]; ok && next.After(at) {
		at = next
	}
	if l.serverNext.After(at) {
		at = l.serverNext
	}

	l.perSession[session] = at.Add(l.sessionInterval + l.penalty)
	l.serverNext = at.Add(l.serverInterval)
	return at.Sub(now)
}

// NoteSuccess records a request the server accepted. After enough
// consecutive successes the penalty halves.
func (l *Limiter) NoteSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.penalty == 0 {
		return
	}
	l.successRun++
	if l.successRun < recoveryRuns {
		return
	}
	l.successRun = 0
	l.penalty /= 2
	if l.penalty < l.sessionInterval {
		l.penalty = 0
		l.backoff.Reset()
	}
}

// NoteRateLimited records a slow-down signal. Each consecutive signal
// at least doubles the penalty, up to a cap; retryAfter from the server
// overrides the computed penalty when it is larger.
func (l *Limiter) NoteRateLimited(retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successRun = 0
	next := l.backoff.NextBackOff()
	if next > l.penalty {
		l.penalty = next
	}
	if retryAfter > l.penalty {
		l.penalty = retryAfter
	}
	if l.penalty > backoffCap {
		l.penalty = backoffCap
	}
}

// Penalty exposes the current extra spacing, mostly for logging.
func (l *Limiter) Penalty() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.penalty
}
