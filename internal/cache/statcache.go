package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/bucketfs/bucketfs/pkg/utils"
)

// StatEntry holds the cached metadata for one path.
type StatEntry struct {
	Size           int64
	Mtime          time.Time
	IsDir          bool
	MetadataLoaded bool
	CachedAt       time.Time
}

// statNode is one component of the path trie. A node may exist without
// metadata (a placeholder created while inserting a descendant) and may
// linger after removal until pruned.
type statNode struct {
	children map[string]*statNode
	entry    StatEntry
	exists   bool
}

func newStatNode() *statNode {
	return &statNode{children: make(map[string]*statNode)}
}

// StatCache is a thread-safe trie of per-path stat entries with lazy TTL
// expiry. The root represents "/" and is always a valid directory.
type StatCache struct {
	mu   sync.RWMutex
	root *statNode
	ttl  time.Duration
}

// NewStatCache creates a stat cache whose entries expire after ttl.
// A ttl of zero or less means entries never expire.
func NewStatCache(ttl time.Duration) *StatCache {
	return &StatCache{
		root: newRoot(),
		ttl:  ttl,
	}
}

func newRoot() *statNode {
	node := newStatNode()
	node.exists = true
	node.entry = StatEntry{
		IsDir:          true,
		Mtime:          time.Now(),
		MetadataLoaded: true,
		CachedAt:       time.Now(),
	}
	return node
}

// InsertFile records metadata for a regular file and creates every missing
// ancestor as a directory entry, keeping the trie path-complete.
func (c *StatCache) InsertFile(path string, size int64, mtime time.Time) {
	parts := utils.SplitPath(path)
	if len(parts) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(parts)-1; i++ {
		c.insertDirectoryLocked(parts[:i+1])
	}

	node := c.makeNode(parts)
	node.exists = true
	node.entry = StatEntry{
		Size:           size,
		Mtime:          mtime,
		IsDir:          false,
		MetadataLoaded: true,
		CachedAt:       time.Now(),
	}
}

// InsertDirectory records a path as a directory. A node that already holds
// fresh metadata is left untouched so a synthetic directory entry never
// downgrades a known file.
func (c *StatCache) InsertDirectory(path string) {
	parts := utils.SplitPath(path)
	if len(parts) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertDirectoryLocked(parts)
}

func (c *StatCache) insertDirectoryLocked(parts []string) {
	node := c.makeNode(parts)
	if node.entry.MetadataLoaded && !c.expired(node.entry) {
		return
	}
	node.exists = true
	node.entry = StatEntry{
		IsDir:          true,
		Mtime:          time.Now(),
		MetadataLoaded: true,
		CachedAt:       time.Now(),
	}
}

// GetStat returns the cached entry for path. Expired entries report a miss
// but stay in the trie until overwritten or removed. The root is always a
// hit.
func (c *StatCache) GetStat(path string) (StatEntry, bool) {
	parts := utils.SplitPath(path)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(parts) == 0 {
		return c.root.entry, true
	}

	node := c.findNode(parts)
	if node == nil || !node.exists || !node.entry.MetadataLoaded {
		return StatEntry{}, false
	}
	if c.expired(node.entry) {
		return StatEntry{}, false
	}
	return node.entry, true
}

// Exists reports whether path is known to exist. Unlike GetStat it ignores
// the TTL: an expired entry still answers existence until removed.
func (c *StatCache) Exists(path string) bool {
	parts := utils.SplitPath(path)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(parts) == 0 {
		return true
	}
	node := c.findNode(parts)
	return node != nil && node.exists
}

// IsDirectory reports whether path is known to be a directory.
func (c *StatCache) IsDirectory(path string) bool {
	parts := utils.SplitPath(path)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(parts) == 0 {
		return true
	}
	node := c.findNode(parts)
	return node != nil && node.exists && node.entry.IsDir
}

// ListDirectory returns the names of the existing children of path, sorted.
// A missing path or a file yields no entries.
func (c *StatCache) ListDirectory(path string) []string {
	parts := utils.SplitPath(path)

	c.mu.RLock()
	defer c.mu.RUnlock()

	node := c.root
	if len(parts) > 0 {
		node = c.findNode(parts)
	}
	if node == nil || !node.entry.IsDir {
		return nil
	}

	var names []string
	for name, child := range node.children {
		if child.exists {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Remove marks path as non-existent and prunes childless non-existent
// nodes bottom-up, stopping at the first node that still has children or
// still exists. Removing the root or an unknown path is a no-op.
func (c *StatCache) Remove(path string) {
	parts := utils.SplitPath(path)
	if len(parts) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Collect the node chain during descent so pruning can walk back up
	// without parent references.
	chain := make([]*statNode, 0, len(parts)+1)
	chain = append(chain, c.root)
	current := c.root
	for _, part := range parts {
		child, ok := current.children[part]
		if !ok {
			return
		}
		current = child
		chain = append(chain, current)
	}

	current.exists = false
	current.entry = StatEntry{}

	for i := len(parts) - 1; i >= 0; i-- {
		node := chain[i+1]
		if len(node.children) == 0 && !node.exists {
			delete(chain[i].children, parts[i])
		} else {
			break
		}
	}
}

// Clear drops every entry and resets the trie to a bare root.
func (c *StatCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root = newRoot()
}

func (c *StatCache) expired(entry StatEntry) bool {
	if c.ttl <= 0 {
		return false
	}
	return time.Since(entry.CachedAt) >= c.ttl
}

// findNode walks the trie for parts, returning nil on the first missing
// component. Callers hold the lock.
func (c *StatCache) findNode(parts []string) *statNode {
	current := c.root
	for _, part := range parts {
		child, ok := current.children[part]
		if !ok {
			return nil
		}
		current = child
	}
	return current
}

// makeNode walks the trie for parts, creating placeholder nodes as needed.
// Callers hold the lock.
func (c *StatCache) makeNode(parts []string) *statNode {
	current := c.root
	for _, part := range parts {
		child, ok := current.children[part]
		if !ok {
			child = newStatNode()
			current.children[part] = child
		}
		current = child
	}
	return current
}
