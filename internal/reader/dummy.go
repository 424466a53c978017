package reader

import (
	"context"
	"sync"

	bfserrors "github.com/bucketfs/bucketfs/pkg/errors"
)

// Dummy serves preset content from memory. It backs tests and offline mounts
// and distinguishes an unknown key (not-found error) from a read past the
// end of a known object (zero bytes).
type Dummy struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewDummy creates an empty dummy reader.
func NewDummy() *Dummy {
	return &Dummy{objects: make(map[string][]byte)}
}

// SetObject installs content for key, replacing any previous content.
func (d *Dummy) SetObject(key string, content []byte) {
	stored := make([]byte, len(content))
	copy(stored, content)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[key] = stored
}

// Read implements Reader.
func (d *Dummy) Read(ctx context.Context, key string, buf []byte, offset int64) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	content, ok := d.objects[key]
	if !ok {
		return 0, bfserrors.NotFound("get", "", key)
	}
	return copyRange(content, buf, offset), nil
}

// Invalidate implements Reader; preset content is not a cache.
func (d *Dummy) Invalidate(key string) {}

// Clear implements Reader, dropping all preset content.
func (d *Dummy) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects = make(map[string][]byte)
}
