package objectstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

type memoryObject struct {
	data         []byte
	lastModified time.Time
}

// MemoryBucket is an in-process Bucket.
type MemoryBucket struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemoryBucket creates an empty bucket stamping objects with the wall clock.
func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{objects: make(map[string]memoryObject), now: time.Now}
}

// Put implements Bucket.
func (b *MemoryBucket) Put(_ context.Context, key string, data []byte, _ string) error {
	b.PutAt(key, data, b.now())
	return nil
}

// PutAt stores data with an explicit modification time.
func (b *MemoryBucket) PutAt(key string, data []byte, modified time.Time) {
	cp := make([]byte, len(data))
	copy(cp, data)
	b.mu.Lock()
	b.objects[key] = memoryObject{data: cp, lastModified: modified}
	b.mu.Unlock()
}

// Get implements Bucket.
func (b *MemoryBucket) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	obj, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return nil, etlerrors.Newf(etlerrors.ErrorTypeNotFound, "object %q not found", key)
	}
	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	return cp, nil
}

// List implements Bucket. Results are sorted by key.
func (b *MemoryBucket) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []ObjectInfo
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, LastModified: obj.lastModified, Size: int64(len(obj.data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Close implements Bucket.
func (b *MemoryBucket) Close() error { return nil }
