package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"certcanvas/core"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	tableStmt := `
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT,
		category TEXT,
		data BLOB,
		created_at DATETIME,
		updated_at DATETIME
	);`
	if _, err = db.Exec(tableStmt); err != nil {
		log.Fatalf("failed to create templates table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) List(ctx context.Context) ([]core.Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM templates ORDER BY updated_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc core.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			logrus.WithError(err).Warn("Skipping template row with malformed payload")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("template_id", id)
	log.Debug("Retrieving template by ID")

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM templates WHERE id = ?", id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			log.WithField("error", "template not found").Warn("Template with specified ID not found")
			return nil, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve template")
		return nil, err
	}

	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.WithError(err).Error("Failed to unmarshal template payload")
		return nil, err
	}
	log.Info("Template retrieved successfully")
	return &doc, nil
}

func (s *sqliteStore) Save(ctx context.Context, doc *core.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("template id cannot be empty for save operation")
	}
	log := logrus.WithField("template_id", doc.ID)

	now := time.Now()
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT created_at FROM templates WHERE id = ?", doc.ID).Scan(&createdAt)
	switch {
	case err == sql.ErrNoRows:
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
	case err != nil:
		return err
	default:
		doc.CreatedAt = createdAt
	}
	doc.UpdatedAt = now

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal template %s: %w", doc.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, category, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Name, doc.Category, data, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to save template")
		return err
	}
	log.Info("Template saved successfully")
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	return nil
}
