package traffic

import (
	"sync"
	"time"
)

// Tracker keeps sliding windows of fetch outcomes for health decisions.
// Entries older than the retention passed to NewTracker are pruned on write.
type Tracker struct {
	mu        sync.Mutex
	retention time.Duration
	now       func() time.Time

	successTimes      []time.Time
	errorTimes        []time.Time
	cacheFailureTimes []time.Time
}

func NewTracker(retention time.Duration) *Tracker {
	return NewTrackerWithClock(retention, time.Now)
}

// NewTrackerWithClock is NewTracker with an injectable clock.
func NewTrackerWithClock(retention time.Duration, now func() time.Time) *Tracker {
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	return &Tracker{retention: retention, now: now}
}

// RecordSuccess records a fetch that returned a payload.
func (t *Tracker) RecordSuccess() {
	t.recordOutcome(&t.successTimes)
}

// RecordError records a fetch that failed (provider or decode error).
func (t *Tracker) RecordError() {
	t.recordOutcome(&t.errorTimes)
}

// RecordCacheFailure records a recovered cache read or write failure.
func (t *Tracker) RecordCacheFailure() {
	t.recordOutcome(&t.cacheFailureTimes)
}

func (t *Tracker) recordOutcome(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// ErrorRate returns (errorCount, totalCount) within the window.
// Cache failures are not part of either count.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errCount := countInWindow(t.errorTimes, cutoff)
	return errCount, errCount + countInWindow(t.successTimes, cutoff)
}

// CacheFailureCount returns the number of recovered cache failures within the window.
func (t *Tracker) CacheFailureCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.cacheFailureTimes, t.now().Add(-window))
}

// countInWindow counts timestamps not before cutoff.
func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than the retention. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
	prune(&t.cacheFailureTimes)
}
