package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"certcanvas/core"
)

// fakeRemote is a minimal in-memory /templates/simple server.
type fakeRemote struct {
	mu       sync.Mutex
	docs     map[string]core.Document
	hits     int
	failAll  bool
	bareList bool
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++

	if f.failAll {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	switch {
	case r.Method == http.MethodPost:
		var doc core.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		f.docs[doc.ID] = doc
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(doc)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/templates/simple/"):
		id := strings.TrimPrefix(r.URL.Path, "/templates/simple/")
		doc, ok := f.docs[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(doc)

	case r.Method == http.MethodGet:
		docs := make([]core.Document, 0, len(f.docs))
		for _, doc := range f.docs {
			docs = append(docs, doc)
		}
		if f.bareList {
			json.NewEncoder(w).Encode(docs)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"items": docs})

	default:
		http.Error(w, "unexpected request", http.StatusMethodNotAllowed)
	}
}

func (f *fakeRemote) hitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

func newTestService(t *testing.T) (*Service, *fakeRemote, *MemoryCache) {
	t.Helper()
	remote := &fakeRemote{docs: make(map[string]core.Document)}
	server := httptest.NewServer(remote)
	t.Cleanup(server.Close)

	cache := NewMemoryCache()
	svc := NewService(NewRemoteClient(server.URL, "test-token", server.Client()), cache)
	return svc, remote, cache
}

func testDocument(name string) core.Document {
	return core.Document{
		Name:   name,
		Canvas: core.CanvasConfig{Width: 800, Height: 600, Background: "#fff"},
		Elements: []core.Element{
			{ID: "t1", Type: core.ElementText, X: 10, Y: 10, Width: 200, Height: 40,
				Opacity: 1, Visible: true,
				Properties: core.Properties{Text: "Hello"}},
		},
	}
}

func TestSaveLoad_RemoteRoundTrip(t *testing.T) {
	svc, _, cache := newTestService(t)
	ctx := context.Background()

	saved := svc.Save(ctx, testDocument("Completion"))
	if saved.ID == "" {
		t.Fatal("Save() did not assign an id")
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Error("Save() did not stamp timestamps")
	}
	if saved.Category != core.DefaultCategory {
		t.Errorf("Category = %q, want default", saved.Category)
	}

	loaded := svc.Load(ctx, saved.ID)
	if loaded == nil {
		t.Fatal("Load() returned nil for a just-saved document")
	}
	if loaded.Name != "Completion" || loaded.ID != saved.ID {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Elements) != 1 || loaded.Elements[0].Properties.Text != "Hello" {
		t.Errorf("elements did not survive the round trip: %+v", loaded.Elements)
	}

	// Write-through: the cache mirrors the remote-confirmed document.
	mirrored, err := cache.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(mirrored) != 1 || mirrored[0].ID != saved.ID {
		t.Errorf("cache = %+v, want one mirrored document", mirrored)
	}
}

func TestSave_RemoteFailureTripsBreaker(t *testing.T) {
	svc, remote, _ := newTestService(t)
	remote.failAll = true
	ctx := context.Background()

	saved := svc.Save(ctx, testDocument("Offline"))
	if saved.ID == "" {
		t.Fatal("Save() must still assign an id when the remote is down")
	}
	if svc.RemoteReachable() {
		t.Fatal("breaker did not flip on remote failure")
	}

	// Once open, the breaker keeps every operation off the network.
	hits := remote.hitCount()
	svc.Save(ctx, testDocument("Another"))
	svc.List(ctx)
	if loaded := svc.Load(ctx, saved.ID); loaded == nil {
		t.Error("Load() could not find the document in the local cache")
	}
	if remote.hitCount() != hits {
		t.Errorf("remote hit %d more times after the breaker opened", remote.hitCount()-hits)
	}
}

func TestService_IndependentBreakers(t *testing.T) {
	svcA, remote, _ := newTestService(t)
	svcB, _, _ := newTestService(t)
	remote.failAll = true
	ctx := context.Background()

	svcA.Save(ctx, testDocument("A"))
	if svcA.RemoteReachable() {
		t.Error("svcA breaker did not flip")
	}
	if !svcB.RemoteReachable() {
		t.Error("svcB breaker flipped with svcA's")
	}
}

func TestSave_LocalOnlyWithoutRemote(t *testing.T) {
	cache := NewMemoryCache()
	svc := NewService(nil, cache)
	ctx := context.Background()

	saved := svc.Save(ctx, testDocument("Local"))
	if saved.ID == "" {
		t.Fatal("Save() did not assign an id")
	}
	if loaded := svc.Load(ctx, saved.ID); loaded == nil || loaded.Name != "Local" {
		t.Errorf("Load() = %+v, want the cached document", loaded)
	}
}

func TestLoad_Remote404FallsThroughToCache(t *testing.T) {
	svc, _, cache := newTestService(t)
	ctx := context.Background()

	doc := testDocument("CacheOnly")
	doc.ID = "local-1"
	if err := cache.WriteAll(ctx, []core.Document{doc}); err != nil {
		t.Fatalf("WriteAll() failed: %v", err)
	}

	loaded := svc.Load(ctx, "local-1")
	if loaded == nil || loaded.Name != "CacheOnly" {
		t.Fatalf("Load() = %+v, want the cached document", loaded)
	}
	// A 404 is absence, not failure: the breaker stays closed.
	if !svc.RemoteReachable() {
		t.Error("breaker flipped on a remote 404")
	}
}

func TestLoad_MissingEverywhere(t *testing.T) {
	svc, _, _ := newTestService(t)
	if loaded := svc.Load(context.Background(), "ghost"); loaded != nil {
		t.Errorf("Load() = %+v, want nil", loaded)
	}
}

func stamped(name, id string, updated time.Time) core.Document {
	doc := testDocument(name)
	doc.ID = id
	doc.UpdatedAt = updated
	doc.CreatedAt = updated.Add(-time.Hour)
	return doc
}

func TestList_MergeDedupSort(t *testing.T) {
	svc, remote, cache := newTestService(t)
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }
	remote.docs["x"] = stamped("X-remote", "x", day(2))
	remote.docs["a"] = stamped("A", "a", day(3))
	cache.WriteAll(ctx, []core.Document{
		stamped("X-local", "x", day(1)),
		stamped("B", "b", day(4)),
	})

	docs := svc.List(ctx)
	if len(docs) != 3 {
		t.Fatalf("len = %d, want 3 (x deduplicated)", len(docs))
	}
	if docs[0].ID != "b" || docs[1].ID != "a" || docs[2].ID != "x" {
		t.Errorf("order = %s,%s,%s want b,a,x (most recently touched first)",
			docs[0].ID, docs[1].ID, docs[2].ID)
	}
	if docs[2].Name != "X-remote" {
		t.Errorf("collision winner = %q, want the newer remote copy", docs[2].Name)
	}
}

func TestList_NewerLocalEditWinsCollision(t *testing.T) {
	svc, remote, cache := newTestService(t)
	ctx := context.Background()

	remote.docs["x"] = stamped("X-remote", "x", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	cache.WriteAll(ctx, []core.Document{
		stamped("X-local", "x", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
	})

	docs := svc.List(ctx)
	if len(docs) != 1 {
		t.Fatalf("len = %d, want 1", len(docs))
	}
	if docs[0].Name != "X-local" {
		t.Errorf("winner = %q, want the newer local edit", docs[0].Name)
	}
}

func TestList_BareArrayTolerated(t *testing.T) {
	svc, remote, _ := newTestService(t)
	remote.bareList = true
	remote.docs["a"] = stamped("A", "a", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	docs := svc.List(context.Background())
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Errorf("docs = %+v, want the single remote document", docs)
	}
}

func TestList_RemoteFailureServesCache(t *testing.T) {
	svc, remote, cache := newTestService(t)
	remote.failAll = true
	ctx := context.Background()

	cache.WriteAll(ctx, []core.Document{stamped("B", "b", time.Now().UTC())})

	docs := svc.List(ctx)
	if len(docs) != 1 || docs[0].ID != "b" {
		t.Errorf("docs = %+v, want the cached document only", docs)
	}
	if svc.RemoteReachable() {
		t.Error("breaker did not flip on list failure")
	}
}

func TestFileCache_RoundTrip(t *testing.T) {
	cache, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() failed: %v", err)
	}
	ctx := context.Background()

	doc := testDocument("Durable")
	doc.ID = "d1"
	if err := cache.WriteAll(ctx, []core.Document{doc}); err != nil {
		t.Fatalf("WriteAll() failed: %v", err)
	}

	docs, err := cache.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "d1" || docs[0].Name != "Durable" {
		t.Errorf("docs = %+v", docs)
	}
	if docs[0].Elements[0].Properties.Text != "Hello" {
		t.Errorf("elements did not survive: %+v", docs[0].Elements)
	}
}

func TestFileCache_MissingFileReadsEmpty(t *testing.T) {
	cache, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() failed: %v", err)
	}
	docs, err := cache.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("docs = %+v, want empty", docs)
	}
}

func TestFileCache_CorruptPayloadReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, cacheKey+".json"), []byte("{corrupt"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	docs, err := cache.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll() must absorb corruption, got: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("docs = %+v, want empty", docs)
	}
}

func TestFileCache_NormalizesLegacyEntries(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache() failed: %v", err)
	}
	legacy := `[{"template_id":"old-1","template_name":"Legacy","design":{"elements":[{"type":"rectangle"}]}}]`
	if err := os.WriteFile(filepath.Join(dir, cacheKey+".json"), []byte(legacy), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	docs, err := cache.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "old-1" || docs[0].Name != "Legacy" {
		t.Fatalf("docs = %+v", docs)
	}
	if docs[0].Elements[0].Type != core.ElementShape {
		t.Errorf("legacy element type = %q, want shape", docs[0].Elements[0].Type)
	}
}
