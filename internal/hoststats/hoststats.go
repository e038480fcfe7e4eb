// Package hoststats implements the adaptive per-host spacing algorithm at
// the heart of the Queue Manager (§3, §4.1 of the design). It holds no
// goroutines and no locks of its own: the Queue Manager's per-host dispatcher
// goroutine is the sole owner of a Stats value, which is exactly what lets
// this package skip synchronization entirely.
package hoststats

import (
	"math"
	"time"
)

// Rand returns a uniformly distributed float64 in [0, 1). Tests substitute a
// deterministic implementation; production wires math/rand/v2.
type Rand func() float64

// Limits are the construction-time clamps and defaults a QueueManager is
// configured with (§4.1's enumerated construction parameters, the subset
// that bears on spacing).
type Limits struct {
	DefaultRequestInterval time.Duration
	MinRequestInterval     time.Duration
	MaxRequestInterval     time.Duration
}

// Stats is the mutable adaptive state kept for one remote host. Zero value
// is not useful; construct with New.
type Stats struct {
	MinRequestInterval time.Duration
	LastRequestTime    time.Time
	RequestsInFlight   int
	SuccessCount       int
	ErrorCount         int
	ConsecutiveErrors  int
}

// New creates a Stats seeded at the configured default interval, as required
// by §3's HostStats lifecycle ("created lazily on first sighting").
func New(limits Limits) *Stats {
	return &Stats{MinRequestInterval: limits.DefaultRequestInterval}
}

// DispatchJitter implements the "(1 + 0.15 + U[0,0.35])" factor used both to
// desynchronize the spacing re-invocation (§4.1 step 2) and the retry
// backoff (§4.1's makeRequestWithRetry).
func DispatchJitter(rnd Rand) float64 {
	return 1 + 0.15 + rnd()*0.35
}

// successJitter implements the "(1 + 0.15 + U[0,0.55])" factor used only by
// the on-success spacing adaptation (§4.1 step 6).
func successJitter(rnd Rand) float64 {
	return 1 + 0.15 + rnd()*0.55
}

// RecordSuccess applies §4.1 step 6: success/error bookkeeping plus the
// spacing adaptation that explores toward faster spacing on fast responses
// and backs off on slow ones.
func (s *Stats) RecordSuccess(limits Limits, responseTime, minExpectedResponseTime time.Duration, rnd Rand) {
	s.SuccessCount++
	if s.ConsecutiveErrors > 0 {
		s.ConsecutiveErrors--
	}

	jitter := successJitter(rnd)
	if responseTime <= minExpectedResponseTime {
		floor := time.Duration(float64(limits.MinRequestInterval) * jitter)
		decayed := time.Duration(float64(s.MinRequestInterval) * 0.95)
		s.MinRequestInterval = maxDuration(floor, decayed)
	} else {
		ceiling := time.Duration(float64(limits.MaxRequestInterval) * jitter)
		grown := time.Duration(float64(s.MinRequestInterval) * 1.10)
		s.MinRequestInterval = minDuration(ceiling, grown)
	}
}

// RecordError applies §4.1 step 7: error bookkeeping plus the retryable-
// status-aware spacing penalty. A retryable error counts as first contact
// when SuccessCount is zero at the moment of this call.
func (s *Stats) RecordError(limits Limits, retryable bool) {
	wasFirstContact := s.SuccessCount == 0
	s.ErrorCount++
	s.ConsecutiveErrors++

	switch {
	case retryable && wasFirstContact:
		s.MinRequestInterval = 10_000 * time.Millisecond
	case retryable:
		s.MinRequestInterval = minDuration(30_000*time.Millisecond, s.MinRequestInterval*3)
	case s.ConsecutiveErrors >= 2:
		s.MinRequestInterval = minDuration(limits.MaxRequestInterval, s.MinRequestInterval*2)
	case s.ErrorCount > 0 && s.SuccessCount == 0:
		s.MinRequestInterval = minDuration(limits.MaxRequestInterval, time.Duration(float64(s.MinRequestInterval)*1.5))
	}
}

// DueIn returns how long the caller must still wait before this host's next
// dispatch is allowed, given the current time. A non-positive result means
// dispatch may proceed now.
func (s *Stats) DueIn(now time.Time) time.Duration {
	if s.LastRequestTime.IsZero() {
		return 0
	}
	elapsed := now.Sub(s.LastRequestTime)
	return s.MinRequestInterval - elapsed
}

func maxDuration(a, b time.Duration) time.Duration {
	return time.Duration(math.Max(float64(a), float64(b)))
}

func minDuration(a, b time.Duration) time.Duration {
	return time.Duration(math.Min(float64(a), float64(b)))
}
