package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"certcanvas/core"
)

func newTestStore(t *testing.T) *sqliteStore {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "templates.db"))
}

func testDoc(id, name string) *core.Document {
	return &core.Document{
		ID:     id,
		Name:   name,
		Canvas: core.CanvasConfig{Width: 800, Height: 600, Background: "#fff"},
	}
}

func TestStore_SaveGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("t1", "Completion")
	doc.Elements = []core.Element{
		{ID: "e1", Type: core.ElementQRCode, Opacity: 1, Visible: true,
			Properties: core.Properties{QRCodeData: "https://verify.example.com/c/1"}},
	}
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != "Completion" {
		t.Errorf("Name = %q", got.Name)
	}
	if len(got.Elements) != 1 || got.Elements[0].Properties.QRCodeData == "" {
		t.Errorf("elements did not survive the blob round trip: %+v", got.Elements)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "ghost")
	if err == nil {
		t.Fatal("Get() found a document that was never saved")
	}
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_UpdateKeepsCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("t1", "v1")
	store.Save(ctx, doc)
	created := doc.CreatedAt

	time.Sleep(5 * time.Millisecond)
	update := testDoc("t1", "v2")
	if err := store.Save(ctx, update); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != "v2" {
		t.Errorf("Name = %q, want the updated v2", got.Name)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want original %v", got.CreatedAt, created)
	}
}

func TestStore_ListOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		store.Save(ctx, testDoc(id, id))
		time.Sleep(5 * time.Millisecond)
	}

	docs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "b" {
		t.Errorf("docs = %+v, want b first", docs)
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Save(ctx, testDoc("t1", "x"))
	if err := store.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := store.Delete(ctx, "t1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
