package docstore

import (
	"context"
	"testing"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

func TestGitStoreLifecycle(t *testing.T) {
	store := NewGitStore(t.TempDir(), "tester")
	ctx := context.Background()

	doc, rev, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() on fresh store error = %v", err)
	}
	if rev == "" {
		t.Fatal("expected baseline revision")
	}
	if len(doc.Clients) != 0 || doc.Clients == nil {
		t.Fatalf("expected empty baseline document, got %+v", doc)
	}

	doc.Clients = append(doc.Clients, crm.Client{
		ID: "client-1", Name: "Acme", Country: "US",
		Contacts: []crm.Contact{{Contact: "Jo"}},
	})
	newRev, err := store.Save(ctx, doc, rev)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if newRev == "" || newRev == rev {
		t.Fatalf("expected new revision, got %q (was %q)", newRev, rev)
	}

	reloaded, rev2, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rev2 != newRev {
		t.Fatalf("revision mismatch: %q vs %q", rev2, newRev)
	}
	if len(reloaded.Clients) != 1 || reloaded.Clients[0].Name != "Acme" {
		t.Fatalf("document did not round-trip: %+v", reloaded.Clients)
	}

	history, err := store.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected baseline + save in history, got %d", len(history))
	}
	if history[0].Hash != newRev {
		t.Fatalf("newest commit first expected, got %+v", history[0])
	}
}

func TestGitStoreRejectsStaleRevision(t *testing.T) {
	store := NewGitStore(t.TempDir(), "tester")
	ctx := context.Background()

	doc, rev, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := store.Save(ctx, doc, rev); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	// Second writer still holds the baseline revision.
	if _, err := store.Save(ctx, doc, rev); err != ErrRevisionConflict {
		t.Fatalf("expected ErrRevisionConflict, got %v", err)
	}
}

func TestGitStoreRejectsSaveWithoutRevision(t *testing.T) {
	store := NewGitStore(t.TempDir(), "tester")
	ctx := context.Background()

	doc, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// A writer that never loaded holds no revision and must not be able
	// to replace the stored document.
	if _, err := store.Save(ctx, doc, ""); err != ErrRevisionConflict {
		t.Fatalf("expected ErrRevisionConflict, got %v", err)
	}
}
