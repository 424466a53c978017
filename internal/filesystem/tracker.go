package filesystem

import "sync"

// readTracker counts in-flight reads per path. The counts feed the
// inflight gauge and debug logging; they guard nothing.
type readTracker struct {
	mu     sync.Mutex
	depths map[string]int
}

func newReadTracker() *readTracker {
	return &readTracker{depths: make(map[string]int)}
}

// Enter records one in-flight read of path and returns the function
// that undoes it. The returned function is safe to call on every exit
// path, including more than once.
func (t *readTracker) Enter(path string) func() {
	t.mu.Lock()
	t.depths[path]++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if d := t.depths[path] - 1; d > 0 {
				t.depths[path] = d
			} else {
				delete(t.depths, path)
			}
		})
	}
}

// Depth reports the number of reads of path currently in flight.
func (t *readTracker) Depth(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.depths[path]
}
