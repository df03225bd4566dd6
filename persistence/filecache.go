package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"certcanvas/core"

	"github.com/sirupsen/logrus"
)

// cacheKey names the single collection the durable cache holds.
const cacheKey = "workingFixedTemplates"

// FileCache is a LocalCache backed by one JSON file holding the whole
// document collection. A corrupt or missing file reads as an empty cache;
// writes replace the collection wholesale.
type FileCache struct {
	path string
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	return &FileCache{path: filepath.Join(dir, cacheKey+".json")}, nil
}

func (c *FileCache) ReadAll(ctx context.Context) ([]core.Document, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []core.Document{}, nil
		}
		return nil, fmt.Errorf("read cache %s: %w", c.path, err)
	}

	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		logrus.WithError(err).WithField("path", c.path).Warn("Cache payload is malformed, treating as empty")
		return []core.Document{}, nil
	}

	docs := make([]core.Document, 0, len(entries))
	for _, entry := range entries {
		docs = append(docs, core.NormalizeDocument(entry))
	}
	return docs, nil
}

func (c *FileCache) WriteAll(ctx context.Context, docs []core.Document) error {
	if docs == nil {
		docs = []core.Document{}
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal cache collection: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("write cache %s: %w", c.path, err)
	}
	return nil
}
