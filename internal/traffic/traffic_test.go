package traffic

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewTrackerWithClock(5*time.Minute, clock.Now), clock
}

// TestErrorRate_Empty verifies an unused tracker reports no traffic.
func TestErrorRate_Empty(t *testing.T) {
	tr, _ := newTestTracker()
	if errs, total := tr.ErrorRate(time.Minute); errs != 0 || total != 0 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 0)", errs, total)
	}
}

// TestErrorRate_SuccessAndError verifies errors are counted against successes plus errors.
func TestErrorRate_SuccessAndError(t *testing.T) {
	tr, _ := newTestTracker()
	tr.RecordSuccess()
	tr.RecordSuccess()
	tr.RecordError()
	tr.RecordCacheFailure()
	if errs, total := tr.ErrorRate(time.Minute); errs != 1 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 3)", errs, total)
	}
	if n := tr.CacheFailureCount(time.Minute); n != 1 {
		t.Errorf("CacheFailureCount() = %d, want 1", n)
	}
}

// TestErrorRate_WindowExcludesOld verifies outcomes outside the window are ignored.
func TestErrorRate_WindowExcludesOld(t *testing.T) {
	tr, clock := newTestTracker()
	tr.RecordError()
	clock.Advance(2 * time.Minute)
	tr.RecordSuccess()
	if errs, total := tr.ErrorRate(time.Minute); errs != 0 || total != 1 {
		t.Errorf("ErrorRate(1m) = (%d, %d), want (0, 1)", errs, total)
	}
	if errs, total := tr.ErrorRate(3 * time.Minute); errs != 1 || total != 2 {
		t.Errorf("ErrorRate(3m) = (%d, %d), want (1, 2)", errs, total)
	}
}

// TestPrune_DropsPastRetention verifies writes prune entries older than the retention.
func TestPrune_DropsPastRetention(t *testing.T) {
	tr, clock := newTestTracker()
	tr.RecordError()
	clock.Advance(6 * time.Minute)
	tr.RecordSuccess()

	tr.mu.Lock()
	n := len(tr.errorTimes)
	tr.mu.Unlock()
	if n != 0 {
		t.Errorf("errorTimes retained %d entries, want 0 after retention", n)
	}
}

// TestTracker_Concurrent verifies concurrent recording is safe.
func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				tr.RecordSuccess()
			} else {
				tr.RecordError()
			}
		}(i)
	}
	wg.Wait()
	if errs, total := tr.ErrorRate(time.Minute); errs != 10 || total != 20 {
		t.Errorf("ErrorRate() = (%d, %d), want (10, 20)", errs, total)
	}
}
