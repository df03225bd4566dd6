package persistence

import (
	"context"
	"sort"
	"time"

	"certcanvas/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Service persists documents remote-first with a durable local fallback.
//
// It owns a one-way circuit breaker: remoteReachable starts true, flips to
// false on the first remote failure and never recovers within the
// service's lifetime. After the flip every operation runs against the
// local cache only. Each Service instance carries its own breaker, so
// independent instances degrade independently.
//
// Save and List never fail outright; they return the best-effort result.
// Load returns nil only when the document exists nowhere.
type Service struct {
	remote *RemoteClient
	cache  LocalCache

	remoteReachable bool
	now             func() time.Time
}

func NewService(remote *RemoteClient, cache LocalCache) *Service {
	return &Service{
		remote:          remote,
		cache:           cache,
		remoteReachable: remote != nil,
		now:             time.Now,
	}
}

// RemoteReachable reports the breaker state.
func (s *Service) RemoteReachable() bool {
	return s.remoteReachable
}

func (s *Service) tripBreaker(err error, op string) {
	if !s.remoteReachable {
		return
	}
	s.remoteReachable = false
	logrus.WithError(err).WithField("operation", op).
		Warn("Remote template store failed, switching to local cache for the rest of the session")
}

// Save assigns an id and timestamps, then writes remote-first with a
// write-through mirror into the local cache. When the remote is down the
// document lands in the cache only and is returned as given.
func (s *Service) Save(ctx context.Context, doc core.Document) core.Document {
	if doc.ID == "" {
		doc.ID = ulid.Make().String()
	}
	now := s.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Category == "" {
		doc.Category = core.DefaultCategory
	}

	if s.remoteReachable {
		saved, err := s.remote.Create(ctx, doc)
		if err == nil {
			s.mirror(ctx, saved)
			return saved
		}
		s.tripBreaker(err, "save")
	}

	s.mirror(ctx, doc)
	return doc
}

// mirror upserts one document into the local cache collection.
func (s *Service) mirror(ctx context.Context, doc core.Document) {
	docs, err := s.cache.ReadAll(ctx)
	if err != nil {
		logrus.WithError(err).WithField("document_id", doc.ID).Warn("Could not read local cache for mirroring")
		docs = []core.Document{}
	}

	replaced := false
	for i := range docs {
		if docs[i].ID == doc.ID {
			docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, doc)
	}

	if err := s.cache.WriteAll(ctx, docs); err != nil {
		logrus.WithError(err).WithField("document_id", doc.ID).Warn("Could not mirror document into local cache")
	}
}

// Load reads remote-first. A remote 404 falls through to the cache rather
// than failing; any other remote failure trips the breaker. Returns nil
// when the document is absent everywhere.
func (s *Service) Load(ctx context.Context, id string) *core.Document {
	if s.remoteReachable {
		doc, err := s.remote.Get(ctx, id)
		if err != nil {
			s.tripBreaker(err, "load")
		} else if doc != nil {
			return doc
		}
	}

	docs, err := s.cache.ReadAll(ctx)
	if err != nil {
		logrus.WithError(err).WithField("document_id", id).Warn("Could not read local cache")
		return nil
	}
	for i := range docs {
		if docs[i].ID == id {
			doc := docs[i].Clone()
			return &doc
		}
	}
	return nil
}

// List merges the remote collection with the local cache, deduplicated by
// id, most recently touched first. On an id collision the copy with the
// newer UpdatedAt wins; ties go to the remote.
func (s *Service) List(ctx context.Context) []core.Document {
	var remote []core.Document
	if s.remoteReachable {
		r, err := s.remote.List(ctx)
		if err != nil {
			s.tripBreaker(err, "list")
		} else {
			remote = r
		}
	}

	local, err := s.cache.ReadAll(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Could not read local cache for listing")
	}

	merged := make([]core.Document, 0, len(remote)+len(local))
	index := make(map[string]int, len(remote))
	for _, doc := range remote {
		index[doc.ID] = len(merged)
		merged = append(merged, doc)
	}
	for _, doc := range local {
		at, seen := index[doc.ID]
		if !seen {
			index[doc.ID] = len(merged)
			merged = append(merged, doc)
			continue
		}
		// A genuinely newer local edit beats an older remote copy.
		if doc.UpdatedAt.After(merged[at].UpdatedAt) {
			merged[at] = doc
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return sortStamp(merged[i]).After(sortStamp(merged[j]))
	})
	return merged
}

// sortStamp picks the timestamp documents sort by: UpdatedAt, falling back
// to CreatedAt, then epoch zero.
func sortStamp(doc core.Document) time.Time {
	if !doc.UpdatedAt.IsZero() {
		return doc.UpdatedAt
	}
	if !doc.CreatedAt.IsZero() {
		return doc.CreatedAt
	}
	return time.Time{}
}
