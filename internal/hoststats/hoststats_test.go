package hoststats

import (
	"testing"
	"time"
)

func fixedRand(v float64) Rand {
	return func() float64 { return v }
}

func defaultLimits() Limits {
	return Limits{
		DefaultRequestInterval: time.Second,
		MinRequestInterval:     250 * time.Millisecond,
		MaxRequestInterval:     15 * time.Second,
	}
}

func TestNewSeedsDefaultInterval(t *testing.T) {
	t.Parallel()
	s := New(defaultLimits())
	if s.MinRequestInterval != time.Second {
		t.Fatalf("expected seeded interval of 1s, got %v", s.MinRequestInterval)
	}
}

func TestRecordErrorForcesTenSecondsOnFirstContactRetryable(t *testing.T) {
	t.Parallel()
	s := New(defaultLimits())
	s.RecordError(defaultLimits(), true)
	if s.MinRequestInterval != 10*time.Second {
		t.Fatalf("expected forced 10s interval on first-contact retryable error, got %v", s.MinRequestInterval)
	}
	if s.ErrorCount != 1 || s.ConsecutiveErrors != 1 {
		t.Fatalf("expected error counters to increment, got error=%d consecutive=%d", s.ErrorCount, s.ConsecutiveErrors)
	}
}

func TestRecordErrorRetryableAfterSuccessMultipliesByThreeAndClampsAt30s(t *testing.T) {
	t.Parallel()
	limits := defaultLimits()
	s := New(limits)
	s.RecordSuccess(limits, 10*time.Millisecond, 800*time.Millisecond, fixedRand(0))

	s.MinRequestInterval = 12 * time.Second
	s.SuccessCount = 1
	s.RecordError(limits, true)
	if s.MinRequestInterval != 30*time.Second {
		t.Fatalf("expected clamp at 30s (12s * 3 = 36s > 30s), got %v", s.MinRequestInterval)
	}
}

func TestRecordErrorNonRetryableConsecutiveDoubles(t *testing.T) {
	t.Parallel()
	limits := defaultLimits()
	s := New(limits)
	s.SuccessCount = 1 // not first contact
	s.RecordError(limits, false)
	s.RecordError(limits, false)
	// second call: consecutiveErrors becomes 2 -> doubling branch applies
	if s.MinRequestInterval != 2*time.Second {
		t.Fatalf("expected doubling to 2s on second consecutive non-retryable error, got %v", s.MinRequestInterval)
	}
}

func TestRecordSuccessFastResponseDecaysTowardFloor(t *testing.T) {
	t.Parallel()
	limits := defaultLimits()
	s := New(limits)
	s.MinRequestInterval = 2 * time.Second
	s.RecordSuccess(limits, 10*time.Millisecond, 800*time.Millisecond, fixedRand(0))
	// floor = MinRequestInterval(configured) * (1+0.15+0) = 250ms*1.15 = 287.5ms
	// decayed = 2s * 0.95 = 1.9s; max(floor, decayed) = 1.9s
	want := time.Duration(float64(2*time.Second) * 0.95)
	if s.MinRequestInterval != want {
		t.Fatalf("expected decay to %v, got %v", want, s.MinRequestInterval)
	}
	if s.SuccessCount != 1 {
		t.Fatalf("expected success count 1, got %d", s.SuccessCount)
	}
}

func TestRecordSuccessSlowResponseGrowsTowardCeiling(t *testing.T) {
	t.Parallel()
	limits := defaultLimits()
	s := New(limits)
	s.MinRequestInterval = time.Second
	s.RecordSuccess(limits, time.Second, 200*time.Millisecond, fixedRand(0))
	// grown = 1s * 1.10 = 1.1s; ceiling = 15s*1.15 = 17.25s; min(ceiling, grown) = 1.1s
	want := time.Duration(float64(time.Second) * 1.10)
	if s.MinRequestInterval != want {
		t.Fatalf("expected growth to %v, got %v", want, s.MinRequestInterval)
	}
}

func TestRecordSuccessDecrementsConsecutiveErrors(t *testing.T) {
	t.Parallel()
	limits := defaultLimits()
	s := New(limits)
	s.ConsecutiveErrors = 3
	s.RecordSuccess(limits, 10*time.Millisecond, 800*time.Millisecond, fixedRand(0))
	if s.ConsecutiveErrors != 2 {
		t.Fatalf("expected consecutive errors to decrement by 1, got %d", s.ConsecutiveErrors)
	}
}

func TestDueIn(t *testing.T) {
	t.Parallel()
	s := New(defaultLimits())
	if got := s.DueIn(time.Now()); got != 0 {
		t.Fatalf("expected no wait before first dispatch, got %v", got)
	}
	s.LastRequestTime = time.Now()
	s.MinRequestInterval = time.Second
	if got := s.DueIn(s.LastRequestTime); got <= 0 {
		t.Fatalf("expected positive wait immediately after dispatch, got %v", got)
	}
}

// TestScenarioS4 mirrors SPEC_FULL.md §8 S4: two retryable errors then a
// success should leave the host's interval at or above 3x its starting
// value, with the success adaptation applying its 0.95x decay from there.
func TestScenarioS4(t *testing.T) {
	t.Parallel()
	limits := defaultLimits()
	s := New(limits)
	start := s.MinRequestInterval

	s.RecordError(limits, true) // first contact -> forced to 10s
	if s.MinRequestInterval != 10*time.Second {
		t.Fatalf("expected forced 10s after first retryable error, got %v", s.MinRequestInterval)
	}

	s.RecordError(limits, true) // successCount still 0 -> forced again
	if s.MinRequestInterval != 10*time.Second {
		t.Fatalf("expected still-forced 10s on second first-contact error, got %v", s.MinRequestInterval)
	}
	if s.MinRequestInterval < start*3 {
		t.Fatalf("expected penalized interval >= 3x start (%v), got %v", start*3, s.MinRequestInterval)
	}

	preSuccess := s.MinRequestInterval
	s.RecordSuccess(limits, 10*time.Millisecond, 800*time.Millisecond, fixedRand(0))
	wantDecay := time.Duration(float64(preSuccess) * 0.95)
	if s.MinRequestInterval != wantDecay {
		t.Fatalf("expected 0.95x decay from penalized interval, want %v got %v", wantDecay, s.MinRequestInterval)
	}
}
