package persistence

import (
	"context"
	"sync"

	"certcanvas/core"
)

// LocalCache is the durable fallback collection behind the service. It is
// a single shared collection of full documents: reads return the whole
// collection, writes replace it. Last write wins.
type LocalCache interface {
	ReadAll(ctx context.Context) ([]core.Document, error)
	WriteAll(ctx context.Context, docs []core.Document) error
}

// MemoryCache is a LocalCache kept in process memory, for tests and for
// callers that do not need durability.
type MemoryCache struct {
	mu   sync.RWMutex
	docs []core.Document
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) ReadAll(ctx context.Context) ([]core.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.Document, len(c.docs))
	for i := range c.docs {
		out[i] = c.docs[i].Clone()
	}
	return out, nil
}

func (c *MemoryCache) WriteAll(ctx context.Context, docs []core.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = make([]core.Document, len(docs))
	for i := range docs {
		c.docs[i] = docs[i].Clone()
	}
	return nil
}
