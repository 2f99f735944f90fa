// Package cooldown tracks per-scope cooldown windows for command dispatch.
// A scope key is an opaque string such as "user:123" (global per-user) or
// "cmd:ping:user:123" (per command per user); absence of an entry means
// not on cooldown.
package cooldown

import (
	"context"
	"sync"
	"time"
)

// Scope pairs a key with the window length to apply when consuming it.
// A zero window disables the scope.
type Scope struct {
	Key    string
	Window time.Duration
}

// Result reports a check-and-consume attempt. When OK is false, Scope names
// the first violated scope and Remaining is the time left on it, always > 0.
type Result struct {
	OK        bool
	Scope     string
	Remaining time.Duration
}

// Limiter is a lazily-expiring cooldown map shared by all in-flight
// dispatches. CheckAndConsume is atomic: two rapid invocations of the same
// command by the same user can never both pass inside one window.
type Limiter struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewLimiter returns an empty limiter using the wall clock.
func NewLimiter() *Limiter {
	return &Limiter{expires: make(map[string]time.Time), now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (l *Limiter) SetClock(now func() time.Time) { l.now = now }

// CheckAndConsume checks every scope in order and, only if all pass,
// records a fresh window for each. The first violated scope short-circuits
// and nothing is consumed. Scopes with a zero window are skipped. Expired
// entries are removed as they are observed.
func (l *Limiter) CheckAndConsume(scopes ...Scope) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for _, s := range scopes {
		if s.Window <= 0 {
			continue
		}
		exp, ok := l.expires[s.Key]
		if !ok {
			continue
		}
		if now.Before(exp) {
			return Result{Scope: s.Key, Remaining: exp.Sub(now)}
		}
		delete(l.expires, s.Key)
	}
	for _, s := range scopes {
		if s.Window <= 0 {
			continue
		}
		l.expires[s.Key] = now.Add(s.Window)
	}
	return Result{OK: true}
}

// Sweep drops every expired entry. Dispatch already expires entries it
// touches; this exists so scope keys for one-off users do not accumulate.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for k, exp := range l.expires {
		if !now.Before(exp) {
			delete(l.expires, k)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Sweep()
			}
		}
	}()
}

// Len reports the current number of tracked entries, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.expires)
}
