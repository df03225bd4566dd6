package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"certcanvas/core"

	"github.com/sirupsen/logrus"
)

// fsStore keeps one JSON file per template document under basePath.
type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// templatePath resolves the file for a template id and rejects ids that
// would escape the base directory.
func (s *fsStore) templatePath(id string) (string, error) {
	if id == "" || id == "." || id == ".." {
		return "", fmt.Errorf("invalid template id")
	}
	filePath := filepath.Join(s.basePath, id+".json")

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filePath)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFile, absBase) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return absFile, nil
}

func (s *fsStore) List(ctx context.Context) ([]core.Document, error) {
	log := logrus.WithField("path", s.basePath)

	files, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("Storage directory does not exist, returning empty list.")
			return []core.Document{}, nil
		}
		log.WithError(err).Error("Failed to read storage directory")
		return nil, err
	}

	docs := make([]core.Document, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.basePath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read template file %s, skipping", file.Name())
			continue
		}
		var doc core.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal template file %s, skipping", file.Name())
			continue
		}
		docs = append(docs, doc)
	}

	log.Infof("Listed %d templates", len(docs))
	return docs, nil
}

func (s *fsStore) Get(ctx context.Context, id string) (*core.Document, error) {
	filePath, err := s.templatePath(id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"template_id": id, "path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Template file not found")
			return nil, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read template file")
		return nil, err
	}

	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.WithError(err).Error("Failed to unmarshal template data")
		return nil, err
	}
	return &doc, nil
}

func (s *fsStore) Save(ctx context.Context, doc *core.Document) error {
	filePath, err := s.templatePath(doc.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"template_id": doc.ID, "path": filePath})

	if existing, err := s.Get(ctx, doc.ID); err == nil {
		doc.CreatedAt = existing.CreatedAt
	} else if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.UpdatedAt = time.Now()

	data, err := json.Marshal(doc)
	if err != nil {
		log.WithError(err).Error("Failed to marshal template for saving")
		return err
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write template file")
		return err
	}
	log.Info("Template saved")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, id string) error {
	filePath, err := s.templatePath(id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"template_id": id, "path": filePath})

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Template file not found for deletion, considered successful.")
			return nil
		}
		log.WithError(err).Error("Failed to delete template file")
		return err
	}
	log.Info("Template deleted successfully")
	return nil
}
