package engine

import (
	"sync"
	"time"
)

// defaultDedupWindow blocks repeats of the same trade key for 5 seconds.
const defaultDedupWindow = 5 * time.Second

// sweepInterval bounds how long expired entries linger.
const sweepInterval = time.Minute

// dedupGuard blocks duplicate submissions of the same trade within a short
// window. Acquisition is a single compare-and-insert under the lock, so two
// concurrent attempts on the same key can never both pass.
type dedupGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time
	window  time.Duration
}

func newDedupGuard(window time.Duration) *dedupGuard {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &dedupGuard{
		entries: make(map[string]time.Time),
		window:  window,
	}
}

// tryAcquire claims the key. It returns false when the key was claimed less
// than a window ago; otherwise it stamps the key and returns true.
func (d *dedupGuard) tryAcquire(key string) bool {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.entries[key]; ok && now.Sub(last) < d.window {
		return false
	}
	d.entries[key] = now
	return true
}

// release frees the key so a failed trade can be retried immediately.
func (d *dedupGuard) release(key string) {
	d.mu.Lock()
	delete(d.entries, key)
	d.mu.Unlock()
}

// sweep drops entries older than the window.
func (d *dedupGuard) sweep() {
	cutoff := time.Now().Add(-d.window)

	d.mu.Lock()
	defer d.mu.Unlock()
	for key, stamp := range d.entries {
		if stamp.Before(cutoff) {
			delete(d.entries, key)
		}
	}
}

func (d *dedupGuard) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
