package service

import "sync"

// missTracker counts in-progress cache misses per key. Overlapping misses are
// only observed; each one still goes to the provider.
type missTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newMissTracker() *missTracker {
	return &missTracker{active: make(map[string]int)}
}

// begin registers a miss for key and returns how many misses for key are now
// in progress, including this one, plus a func that ends it. done is idempotent.
func (t *missTracker) begin(key string) (concurrent int, done func()) {
	t.mu.Lock()
	t.active[key]++
	concurrent = t.active[key]
	t.mu.Unlock()

	var once sync.Once
	return concurrent, func() {
		once.Do(func() { t.end(key) })
	}
}

func (t *missTracker) end(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[key] <= 1 {
		delete(t.active, key)
		return
	}
	t.active[key]--
}

func (t *missTracker) inProgress(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[key]
}
