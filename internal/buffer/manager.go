// Package buffer accumulates writes in memory until they are flushed to the
// object store. The store only accepts whole objects, so every mutation lands
// in a per-key buffer that is uploaded in full on flush or release.
//
// Each key moves through a small state machine: absent, buffered and dirty,
// buffered and clean. Any mutation marks the buffer dirty; only a confirmed
// upload of exactly that state clears it. A failed upload leaves the buffer
// and its dirty flag untouched so the next flush retries the same bytes.
package buffer

import (
	"sort"
	"sync"
)

type entry struct {
	data  []byte
	dirty bool

	// gen increments on every mutation. An upload clears the entry only
	// when the generation still matches the snapshot it uploaded, so
	// writes racing an upload are never lost.
	gen uint64
}

// Manager owns the write buffers for one mount.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Stats summarizes the buffered state.
type Stats struct {
	Buffers      int   `json:"buffers"`
	DirtyBuffers int   `json:"dirty_buffers"`
	TotalBytes   int64 `json:"total_bytes"`
}

// NewManager creates an empty buffer manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// Create installs an empty dirty buffer for key, truncating any existing
// buffered content.
func (m *Manager) Create(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.ensureLocked(key)
	e.data = nil
	e.dirty = true
	e.gen++
}

// Load seeds key with content pulled from the store. The buffer starts
// clean: only a subsequent mutation makes it eligible for upload.
func (m *Manager) Load(key string, data []byte) {
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.ensureLocked(key)
	e.data = stored
	e.dirty = false
	e.gen++
}

// Write overwrites [offset, offset+len(data)) in the buffer for key,
// zero-extending it when the write starts past the current end. The buffer
// is created if absent. Returns the number of bytes written.
func (m *Manager) Write(key string, data []byte, offset int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.ensureLocked(key)
	end := offset + int64(len(data))
	if int64(len(e.data)) < end {
		grown := make([]byte, end)
		copy(grown, e.data)
		e.data = grown
	}
	copy(e.data[offset:end], data)
	e.dirty = true
	e.gen++
	return len(data)
}

// Truncate resizes the buffer for key, zero-filling on growth. It reports
// false when no buffer exists; callers seed one first via Load.
func (m *Manager) Truncate(key string, size int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}

	switch {
	case size < int64(len(e.data)):
		e.data = e.data[:size]
	case size > int64(len(e.data)):
		grown := make([]byte, size)
		copy(grown, e.data)
		e.data = grown
	}
	e.dirty = true
	e.gen++
	return true
}

// Read copies buffered content starting at offset into buf. It reports false
// when key has no buffer; a read at or past the end returns zero bytes.
func (m *Manager) Read(key string, buf []byte, offset int64) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return 0, false
	}
	if offset >= int64(len(e.data)) {
		return 0, true
	}
	return copy(buf, e.data[offset:]), true
}

// Has reports whether key currently has a buffer.
func (m *Manager) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok
}

// Size returns the buffered length for key.
func (m *Manager) Size(key string) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return 0, false
	}
	return int64(len(e.data)), true
}

// IsDirty reports whether key has mutations not yet uploaded.
func (m *Manager) IsDirty(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	return ok && e.dirty
}

// Snapshot returns a copy of the buffer for key together with its current
// generation, for uploading without holding the lock across store I/O.
func (m *Manager) Snapshot(key string) ([]byte, uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, 0, false
	}
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return data, e.gen, true
}

// CompleteUpload records that the snapshot taken at gen was uploaded. The
// buffer is dropped only if no mutation happened since the snapshot;
// otherwise it stays dirty and the next flush uploads the newer content.
func (m *Manager) CompleteUpload(key string, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.gen != gen {
		return
	}
	delete(m.entries, key)
}

// Remove drops the buffer and dirty state for key.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// DirtyKeys returns the keys with unflushed mutations, sorted.
func (m *Manager) DirtyKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for key, e := range m.entries {
		if e.dirty {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Stats returns a snapshot of the buffered state.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Buffers: len(m.entries)}
	for _, e := range m.entries {
		stats.TotalBytes += int64(len(e.data))
		if e.dirty {
			stats.DirtyBuffers++
		}
	}
	return stats
}

func (m *Manager) ensureLocked(key string) *entry {
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	return e
}
