package remote

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"jotline/internal/model"
	"jotline/internal/syncq"
)

func setupTestRedis(t *testing.T) *Redis {
	t.Helper()
	s := miniredis.RunT(t)
	r, err := NewRedis("redis://"+s.Addr(), "test:")
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedis_FlushMirrorsNodes(t *testing.T) {
	ctx := context.Background()
	r := setupTestRedis(t)
	q, err := syncq.New(syncq.Options{})
	if err != nil {
		t.Fatalf("syncq.New: %v", err)
	}
	Register(q, r)

	if err := q.Enqueue(model.OpCreate, model.EntityNode, "n1", map[string]any{"content": "a", "order": 2}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.FlushNow(ctx); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	if err := q.Enqueue(model.OpUpdate, model.EntityNode, "n1", map[string]any{"content": "b", "starred": true}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.FlushNow(ctx); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}

	got, err := r.Get(ctx, model.EntityNode, "n1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := map[string]any{"content": "b", "order": float64(2), "starred": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mirrored node (-want +got):\n%s", diff)
	}
	ids, err := r.IDs(ctx, model.EntityNode)
	if err != nil || len(ids) != 1 || ids[0] != "n1" {
		t.Fatalf("IDs = %v, %v", ids, err)
	}

	if err := q.Enqueue(model.OpDelete, model.EntityNode, "n1", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.FlushNow(ctx); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	if got, _ := r.Get(ctx, model.EntityNode, "n1"); got != nil {
		t.Fatalf("expected node removed, got %v", got)
	}
	if q.PendingCount() != 0 {
		t.Fatalf("pending = %d", q.PendingCount())
	}
}

func TestRedis_FolderCreateReplacesFields(t *testing.T) {
	ctx := context.Background()
	r := setupTestRedis(t)

	if err := r.Create(ctx, model.EntityFolder, "f1", map[string]any{"name": "Old", "slug": "old"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create(ctx, model.EntityFolder, "f1", map[string]any{"name": "New"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := r.Get(ctx, model.EntityFolder, "f1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"name": "New"}, got); diff != "" {
		t.Fatalf("folder (-want +got):\n%s", diff)
	}
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis("not-a-url", ""); err == nil {
		t.Fatalf("expected error for invalid url")
	}
}
