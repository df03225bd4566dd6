package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"certcanvas/core"

	"github.com/sirupsen/logrus"
)

// memStore keeps template documents in process memory.
type memStore struct {
	mu        sync.RWMutex
	documents map[string]core.Document
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{documents: make(map[string]core.Document)}
}

func (s *memStore) List(ctx context.Context) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]core.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc.Clone())
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UpdatedAt.Equal(docs[j].UpdatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})

	logrus.Infof("Listed %d templates", len(docs))
	return docs, nil
}

func (s *memStore) Get(ctx context.Context, id string) (*core.Document, error) {
	s.mu.RLock()
	doc, ok := s.documents[id]
	s.mu.RUnlock()

	log := logrus.WithField("template_id", id)
	if !ok {
		log.WithField("error", "template not found").Warn("Template with specified ID not found")
		return nil, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}

	out := doc.Clone()
	log.Info("Template retrieved successfully")
	return &out, nil
}

func (s *memStore) Save(ctx context.Context, doc *core.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("template id cannot be empty for save operation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, exists := s.documents[doc.ID]; exists {
		doc.CreatedAt = existing.CreatedAt
	} else if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	s.documents[doc.ID] = doc.Clone()
	logrus.WithField("template_id", doc.ID).Info("Template saved successfully")
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		logrus.WithField("template_id", id).Warn("Template not found for deletion")
		return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	delete(s.documents, id)
	logrus.WithField("template_id", id).Info("Template deleted successfully")
	return nil
}
