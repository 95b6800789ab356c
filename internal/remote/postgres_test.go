package remote

import (
	"context"
	"os"
	"testing"

	"jotline/internal/model"
	"jotline/internal/store"
)

func TestPostgres_CreateUpdateDelete(t *testing.T) {
	url := os.Getenv("JOTLINE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("JOTLINE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	p, err := OpenPostgres(ctx, url)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	id := store.NewID("test")
	if err := p.Create(ctx, model.EntityNode, id, map[string]any{"content": "a", "order": 2}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := p.Update(ctx, model.EntityNode, id, map[string]any{"content": "b"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := p.Get(ctx, model.EntityNode, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["content"] != "b" || got["order"] != float64(2) {
		t.Fatalf("doc = %v", got)
	}
	if err := p.Delete(ctx, model.EntityNode, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := p.Get(ctx, model.EntityNode, id); got != nil {
		t.Fatalf("expected deleted, got %v", got)
	}
}
