// Package ratelimit throttles inbound messages per actor before they reach the dispatcher.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	coreconfig "github.com/m3rciful/ticketbot/core/config"
)

// Options configures a Limiter.
type Options struct {
	// Interval is the minimum spacing between allowed events per actor. Zero disables limiting.
	Interval time.Duration
	// Burst is the number of events allowed back to back. Defaults to 1.
	Burst int
	// Exclude lists update kinds that bypass limiting.
	Exclude map[string]struct{}
	// IdleTTL drops per-actor state that has been unused for this long. Defaults to 10 intervals.
	IdleTTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per actor key.
type Limiter struct {
	opts Options

	mu     sync.Mutex
	actors map[string]*entry
	lastGC time.Time
}

// New returns a limiter; a zero Interval yields a limiter that allows everything.
func New(opts Options) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * opts.Interval
	}
	return &Limiter{opts: opts, actors: make(map[string]*entry)}
}

// FromConfig builds a limiter from the rate_limit config section.
func FromConfig(cfg coreconfig.RateLimitConfig) *Limiter {
	ex := make(map[string]struct{}, len(cfg.ExcludeUpdates))
	for _, k := range cfg.ExcludeUpdates {
		ex[strings.ToLower(k)] = struct{}{}
	}
	return New(Options{
		Interval: time.Duration(cfg.IntervalMS) * time.Millisecond,
		Burst:    cfg.Burst,
		Exclude:  ex,
	})
}

// Enabled reports whether any limiting takes place.
func (l *Limiter) Enabled() bool {
	return l != nil && l.opts.Interval > 0
}

// Allow consumes one token for key unless kind is excluded.
func (l *Limiter) Allow(key, kind string) bool {
	if !l.Enabled() || key == "" {
		return true
	}
	if _, skip := l.opts.Exclude[kind]; skip {
		return true
	}

	now := l.opts.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.actors[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Every(l.opts.Interval), l.opts.Burst)}
		l.actors[key] = e
	}
	e.lastSeen = now
	allowed := e.lim.AllowN(now, 1)
	l.sweepLocked(now)
	return allowed
}

// Len returns the number of tracked actors.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actors)
}

func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastGC) < l.opts.IdleTTL {
		return
	}
	l.lastGC = now
	for k, e := range l.actors {
		if now.Sub(e.lastSeen) >= l.opts.IdleTTL {
			delete(l.actors, k)
		}
	}
}
