// Package ratelimit tracks failed login attempts and locks out credential
// pairs that fail too often, slowing down online password guessing.
package ratelimit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	dErrors "authgate/pkg/domain-errors"
)

const (
	// DefaultThreshold is how many failures within the window trigger a lock.
	DefaultThreshold = 5
	// DefaultWindow is both the failure-counting window and the lock length.
	DefaultWindow = 15 * time.Minute
)

type attemptState struct {
	failures    []time.Time
	lockedUntil time.Time
}

// Lockout counts authentication failures per email/IP pair. Once the
// threshold is crossed inside the window the pair is locked until the window
// elapses; a successful login clears the pair's history.
type Lockout struct {
	threshold int
	window    time.Duration
	clock     func() time.Time

	mu    sync.Mutex
	pairs map[string]*attemptState
}

type Option func(*Lockout)

func WithThreshold(n int) Option {
	return func(l *Lockout) {
		if n > 0 {
			l.threshold = n
		}
	}
}

func WithWindow(w time.Duration) Option {
	return func(l *Lockout) {
		if w > 0 {
			l.window = w
		}
	}
}

// WithClock replaces the time source, used by tests to step through windows.
func WithClock(clock func() time.Time) Option {
	return func(l *Lockout) {
		l.clock = clock
	}
}

func New(opts ...Option) *Lockout {
	l := &Lockout{
		threshold: DefaultThreshold,
		window:    DefaultWindow,
		clock:     time.Now,
		pairs:     make(map[string]*attemptState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func key(email, ip string) string {
	return strings.ToLower(strings.TrimSpace(email)) + ":" + ip
}

// Check reports whether a login attempt for the pair may proceed. A locked
// pair gets a too-many-attempts error carrying the remaining lock time.
func (l *Lockout) Check(email, ip string) error {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.pairs[key(email, ip)]
	if !ok || now.After(state.lockedUntil) {
		return nil
	}

	retryIn := state.lockedUntil.Sub(now).Round(time.Second)
	return dErrors.New(dErrors.CodeTooManyLoginAttempts,
		fmt.Sprintf("too many failed login attempts, retry in %s", retryIn))
}

// RecordFailure notes a failed attempt and reports whether the pair just
// became locked.
func (l *Lockout) RecordFailure(email, ip string) bool {
	now := l.clock()
	k := key(email, ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.pairs[k]
	if !ok {
		state = &attemptState{}
		l.pairs[k] = state
	}

	cutoff := now.Add(-l.window)
	kept := state.failures[:0]
	for _, t := range state.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	state.failures = append(kept, now)

	if len(state.failures) >= l.threshold && now.After(state.lockedUntil) {
		state.lockedUntil = now.Add(l.window)
		return true
	}
	return false
}

// RecordSuccess clears the pair's failure history.
func (l *Lockout) RecordSuccess(email, ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pairs, key(email, ip))
}

// Prune drops pairs whose failures and locks have all aged out. The caller
// schedules it; the lockout itself runs no goroutines.
func (l *Lockout) Prune() int {
	now := l.clock()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, state := range l.pairs {
		stale := now.After(state.lockedUntil)
		for _, t := range state.failures {
			if t.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(l.pairs, k)
			removed++
		}
	}
	return removed
}
