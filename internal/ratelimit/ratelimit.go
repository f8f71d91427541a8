// Package ratelimit tracks per-provider request quotas with a sliding
// window of admission timestamps. The queue consults a limiter before
// every outbound call and delays by the returned wait when the window
// is full.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zoro-md/zoro/internal/domain"
)

// Profile describes one provider's quota and pacing floor
type Profile struct {
	Window       time.Duration
	MaxRequests  int
	BufferFactor float64       // fraction of the quota actually used
	MinWait      time.Duration // lower bound on any computed wait
}

// effectiveMax returns the admission ceiling after the safety buffer
func (p Profile) effectiveMax() int {
	max := int(float64(p.MaxRequests) * p.BufferFactor)
	if max < 1 {
		max = 1
	}
	return max
}

// ProfileFor returns the default quota profile for a provider
func ProfileFor(src domain.Source) Profile {
	switch src {
	case domain.SourceAniList:
		return Profile{Window: time.Minute, MaxRequests: 90, BufferFactor: 0.8, MinWait: time.Second}
	case domain.SourceMAL:
		return Profile{Window: time.Minute, MaxRequests: 60, BufferFactor: 0.8, MinWait: 2 * time.Second}
	case domain.SourceSimkl:
		return Profile{Window: time.Minute, MaxRequests: 100, BufferFactor: 0.8, MinWait: time.Second}
	case domain.SourceTMDB:
		return Profile{Window: 10 * time.Second, MaxRequests: 40, BufferFactor: 0.9, MinWait: time.Second}
	case domain.SourceJikan:
		return Profile{Window: time.Minute, MaxRequests: 60, BufferFactor: 0.8, MinWait: time.Second}
	default:
		return Profile{Window: time.Minute, MaxRequests: 60, BufferFactor: 0.8, MinWait: time.Second}
	}
}

// Decision is the outcome of an admission check
type Decision struct {
	Allowed bool
	Wait    time.Duration // how long to wait before retrying when not allowed
}

// Limiter is one provider's sliding window. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	source  domain.Source
	profile Profile

	stamps       []time.Time // admissions within the window, oldest first
	authFailures int
	lastRequest  time.Time

	logger *slog.Logger
}

// New creates a limiter for one provider
func New(source domain.Source, profile Profile, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{source: source, profile: profile, logger: logger}
}

// Reserve admits the request and records it, or reports how long to wait.
// The wait is the time until the oldest admission leaves the window,
// clamped to the profile minimum and scaled by consecutive auth failures.
func (l *Limiter) Reserve() Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.prune(now)

	if len(l.stamps) < l.profile.effectiveMax() {
		l.stamps = append(l.stamps, now)
		l.lastRequest = now
		return Decision{Allowed: true}
	}

	wait := l.profile.Window - now.Sub(l.stamps[0])
	if wait < l.profile.MinWait {
		wait = l.profile.MinWait
	}
	wait = l.scale(wait)
	l.logger.Debug("rate limit window full", "source", l.source, "wait", wait)
	return Decision{Wait: wait}
}

// Check reports the current decision without recording an admission
func (l *Limiter) Check() Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.prune(now)

	if len(l.stamps) < l.profile.effectiveMax() {
		return Decision{Allowed: true}
	}
	wait := l.profile.Window - now.Sub(l.stamps[0])
	if wait < l.profile.MinWait {
		wait = l.profile.MinWait
	}
	return Decision{Wait: l.scale(wait)}
}

// prune drops timestamps older than the window. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.profile.Window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// scale stretches a delay while the provider keeps failing auth
func (l *Limiter) scale(d time.Duration) time.Duration {
	if l.authFailures == 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + 0.5*float64(l.authFailures)))
}

// ScaleByAuthFailures applies the auth-failure multiplier to an external
// delay, such as a retry backoff computed by the queue
func (l *Limiter) ScaleByAuthFailures(d time.Duration) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scale(d)
}

// NoteAuthFailure records a consecutive authentication failure
func (l *Limiter) NoteAuthFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.authFailures++
	l.logger.Debug("auth failure recorded", "source", l.source, "consecutive", l.authFailures)
}

// ResetAuthFailures clears the failure streak after a successful call
func (l *Limiter) ResetAuthFailures() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.authFailures = 0
}

// AuthFailures returns the current consecutive failure count
func (l *Limiter) AuthFailures() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.authFailures
}

// LastRequest returns the time of the most recent admission
func (l *Limiter) LastRequest() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRequest
}

// Registry hands out one limiter per provider
type Registry struct {
	mu       sync.Mutex
	limiters map[domain.Source]*Limiter
	logger   *slog.Logger
}

// NewRegistry creates an empty limiter registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{limiters: make(map[domain.Source]*Limiter), logger: logger}
}

// For returns the provider's limiter, creating it with the default
// profile on first use
func (r *Registry) For(src domain.Source) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[src]; ok {
		return l
	}
	l := New(src, ProfileFor(src), r.logger)
	r.limiters[src] = l
	return l
}

// Configure replaces the provider's limiter with one using the given
// profile, discarding any window state
func (r *Registry) Configure(src domain.Source, p Profile) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := New(src, p, r.logger)
	r.limiters[src] = l
	return l
}
