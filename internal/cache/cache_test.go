package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/HansvanLeerdam/extrusion-crm-app/internal/crm"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := New("redis://"+s.Addr(), "crm:document", time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, s
}

func TestPutAndGet(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	doc := crm.EmptyDocument()
	doc.Clients = []crm.Client{{ID: "client-1", Name: "Acme", Contacts: []crm.Contact{{Contact: "Jo"}}}}

	if err := c.Put(ctx, doc, "rev-1"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, rev, ok := c.Get(ctx)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if rev != "rev-1" {
		t.Errorf("revision = %q, want rev-1", rev)
	}
	if len(got.Clients) != 1 || got.Clients[0].Name != "Acme" {
		t.Errorf("unexpected document: %+v", got)
	}
}

func TestGetMiss(t *testing.T) {
	c, _ := setupTestCache(t)
	if _, _, ok := c.Get(context.Background()); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestGetAfterExpiry(t *testing.T) {
	c, s := setupTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, crm.EmptyDocument(), "rev-1"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.FastForward(2 * time.Minute)
	if _, _, ok := c.Get(ctx); ok {
		t.Fatal("expected miss after TTL expiry")
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, crm.EmptyDocument(), "rev-1"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, _, ok := c.Get(ctx); ok {
		t.Fatal("expected miss after invalidation")
	}
}
