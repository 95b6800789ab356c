package syncq

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jotline/internal/model"
	"jotline/internal/store"
)

var clock = func() time.Time { return time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC) }

func newQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = clock
	}
	q, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return q
}

func mustEnqueue(t *testing.T, q *Queue, kind model.OpKind, entity model.EntityKind, id string, payload map[string]any) {
	t.Helper()
	if err := q.Enqueue(kind, entity, id, payload); err != nil {
		t.Fatalf("Enqueue(%s %s): %v", kind, id, err)
	}
}

func TestEnqueue_CreateThenDeleteCancels(t *testing.T) {
	q := newQueue(t, Options{})
	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "X", map[string]any{"content": "a"})
	mustEnqueue(t, q, model.OpDelete, model.EntityNode, "X", nil)

	if n := q.PendingCount(); n != 0 {
		t.Fatalf("pending = %d, want 0", n)
	}
}

func TestEnqueue_UpdatesMerge(t *testing.T) {
	q := newQueue(t, Options{})
	mustEnqueue(t, q, model.OpUpdate, model.EntityNode, "X", map[string]any{"content": "a"})
	mustEnqueue(t, q, model.OpUpdate, model.EntityNode, "X", map[string]any{"indent": 2})

	ops := q.Pending()
	if len(ops) != 1 {
		t.Fatalf("pending = %d, want 1", len(ops))
	}
	if diff := cmp.Diff(map[string]any{"content": "a", "indent": 2}, ops[0].Payload); diff != "" {
		t.Fatalf("payload (-want +got):\n%s", diff)
	}
	if ops[0].Kind != model.OpUpdate || ops[0].Rev != 2 {
		t.Fatalf("op = %+v", ops[0])
	}
}

func TestEnqueue_MergeRules(t *testing.T) {
	q := newQueue(t, Options{})

	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "a", map[string]any{"content": "x"})
	mustEnqueue(t, q, model.OpUpdate, model.EntityNode, "a", map[string]any{"starred": true})

	mustEnqueue(t, q, model.OpUpdate, model.EntityNode, "b", map[string]any{"content": "y"})
	mustEnqueue(t, q, model.OpDelete, model.EntityNode, "b", nil)
	mustEnqueue(t, q, model.OpUpdate, model.EntityNode, "b", map[string]any{"content": "ignored"})

	mustEnqueue(t, q, model.OpDelete, model.EntityFolder, "c", nil)
	mustEnqueue(t, q, model.OpCreate, model.EntityFolder, "c", map[string]any{"name": "again"})

	type row struct {
		Kind    model.OpKind
		Entity  string
		Payload map[string]any
	}
	var got []row
	for _, op := range q.Pending() {
		got = append(got, row{op.Kind, op.HandlerKey() + ":" + op.EntityID, op.Payload})
	}
	want := []row{
		{model.OpCreate, "node.create:a", map[string]any{"content": "x", "starred": true}},
		{model.OpDelete, "node.delete:b", nil},
		{model.OpUpdate, "folder.update:c", map[string]any{"name": "again"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("queue (-want +got):\n%s", diff)
	}
}

func TestEnqueue_RejectsInvalid(t *testing.T) {
	q := newQueue(t, Options{})
	if err := q.Enqueue("upsert", model.EntityNode, "a", nil); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if err := q.Enqueue(model.OpCreate, "widget", "a", nil); err == nil {
		t.Fatalf("expected error for unknown entity kind")
	}
	if err := q.Enqueue(model.OpCreate, model.EntityNode, "", nil); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestFlush_FIFOAndRemovesOnSuccess(t *testing.T) {
	q := newQueue(t, Options{})
	var seen []string
	record := func(_ context.Context, op model.PendingOperation) error {
		seen = append(seen, op.HandlerKey()+":"+op.EntityID)
		return nil
	}
	q.RegisterHandler(model.EntityNode, model.OpCreate, record)
	q.RegisterHandler(model.EntityNode, model.OpUpdate, record)
	q.RegisterHandler(model.EntityFolder, model.OpCreate, record)

	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "n1", nil)
	mustEnqueue(t, q, model.OpCreate, model.EntityFolder, "f1", nil)
	mustEnqueue(t, q, model.OpUpdate, model.EntityNode, "n2", nil)

	rep, err := q.FlushNow(context.Background())
	if err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	if diff := cmp.Diff([]string{"node.create:n1", "folder.create:f1", "node.update:n2"}, seen); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if rep.Attempted != 3 || rep.Succeeded != 3 || q.PendingCount() != 0 {
		t.Fatalf("report = %+v pending = %d", rep, q.PendingCount())
	}
}

func TestFlush_RetryBoundTerminalOnce(t *testing.T) {
	const maxRetries = 3
	var terminal []*TerminalError
	q := newQueue(t, Options{
		MaxRetries: maxRetries,
		OnTerminal: func(te *TerminalError) { terminal = append(terminal, te) },
	})
	calls := 0
	boom := errors.New("remote unavailable")
	q.RegisterHandler(model.EntityNode, model.OpUpdate, func(context.Context, model.PendingOperation) error {
		calls++
		return boom
	})
	mustEnqueue(t, q, model.OpUpdate, model.EntityNode, "X", map[string]any{"content": "a"})

	for i := 1; i < maxRetries; i++ {
		rep, err := q.FlushNow(context.Background())
		if err != nil {
			t.Fatalf("flush %d: unexpected error %v", i, err)
		}
		if rep.Failed != 1 || q.PendingCount() != 1 {
			t.Fatalf("flush %d: report %+v pending %d", i, rep, q.PendingCount())
		}
	}
	rep, err := q.FlushNow(context.Background())
	if !errors.Is(err, ErrTerminal) || !errors.Is(err, boom) {
		t.Fatalf("expected terminal error wrapping handler error, got %v", err)
	}
	var te *TerminalError
	if !errors.As(err, &te) || te.Op.EntityID != "X" || te.Op.RetryCount != maxRetries {
		t.Fatalf("terminal error = %#v", te)
	}
	if rep.Dropped != 1 || q.PendingCount() != 0 {
		t.Fatalf("report %+v pending %d", rep, q.PendingCount())
	}

	if _, err := q.FlushNow(context.Background()); err != nil {
		t.Fatalf("flush after drop: %v", err)
	}
	if calls != maxRetries {
		t.Fatalf("handler calls = %d, want %d", calls, maxRetries)
	}
	if len(terminal) != 1 {
		t.Fatalf("terminal notifications = %d, want 1", len(terminal))
	}
}

func TestFlush_EnqueueDuringFlushWaitsForNextCycle(t *testing.T) {
	q := newQueue(t, Options{})
	var seen []string
	q.RegisterHandler(model.EntityNode, model.OpCreate, func(_ context.Context, op model.PendingOperation) error {
		seen = append(seen, op.EntityID)
		if op.EntityID == "n1" {
			mustEnqueue(t, q, model.OpCreate, model.EntityNode, "n2", nil)
		}
		return nil
	})
	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "n1", nil)

	rep, err := q.FlushNow(context.Background())
	if err != nil || rep.Attempted != 1 {
		t.Fatalf("first flush: %+v %v", rep, err)
	}
	if q.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", q.PendingCount())
	}
	if _, err := q.FlushNow(context.Background()); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if diff := cmp.Diff([]string{"n1", "n2"}, seen); diff != "" {
		t.Fatalf("attempts (-want +got):\n%s", diff)
	}
}

func TestFlush_WritesMergedWhileInFlightSurvive(t *testing.T) {
	q := newQueue(t, Options{})
	q.RegisterHandler(model.EntityNode, model.OpCreate, func(_ context.Context, op model.PendingOperation) error {
		switch op.EntityID {
		case "upd":
			mustEnqueue(t, q, model.OpUpdate, model.EntityNode, "upd", map[string]any{"content": "newer"})
		case "del":
			mustEnqueue(t, q, model.OpDelete, model.EntityNode, "del", nil)
		}
		return nil
	})
	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "upd", map[string]any{"content": "first"})
	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "del", map[string]any{"content": "gone"})

	if _, err := q.FlushNow(context.Background()); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	ops := q.Pending()
	if len(ops) != 2 {
		t.Fatalf("pending = %+v", ops)
	}
	if ops[0].EntityID != "upd" || ops[0].Kind != model.OpUpdate || ops[0].Payload["content"] != "newer" {
		t.Fatalf("in-flight create followed by update: %+v", ops[0])
	}
	if ops[1].EntityID != "del" || ops[1].Kind != model.OpDelete {
		t.Fatalf("in-flight create followed by delete: %+v", ops[1])
	}
}

func TestFlush_OverlappingCallIsSkipped(t *testing.T) {
	q := newQueue(t, Options{})
	var inner Report
	q.RegisterHandler(model.EntityNode, model.OpCreate, func(ctx context.Context, _ model.PendingOperation) error {
		var err error
		inner, err = q.FlushNow(ctx)
		return err
	})
	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "n1", nil)

	rep, err := q.FlushNow(context.Background())
	if err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	if !inner.Skipped || rep.Skipped || rep.Succeeded != 1 {
		t.Fatalf("outer %+v inner %+v", rep, inner)
	}
}

func TestFlush_UnhandledStaysQueued(t *testing.T) {
	q := newQueue(t, Options{MaxRetries: 1})
	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "n1", nil)

	for i := 0; i < 3; i++ {
		rep, err := q.FlushNow(context.Background())
		if err != nil || rep.Unhandled != 1 {
			t.Fatalf("flush %d: %+v %v", i, rep, err)
		}
	}
	if q.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", q.PendingCount())
	}
}

func TestNew_RestoresPersistedQueue(t *testing.T) {
	p := NewMemoryPersistence()
	q := newQueue(t, Options{Persistence: p})
	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "n1", map[string]any{"content": "hello"})
	mustEnqueue(t, q, model.OpDelete, model.EntityFolder, "f1", nil)
	want := q.Pending()
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.Enqueue(model.OpUpdate, model.EntityNode, "n1", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("enqueue after close: %v", err)
	}

	reopened := newQueue(t, Options{Persistence: p})
	if diff := cmp.Diff(want, reopened.Pending()); diff != "" {
		t.Fatalf("restored queue (-want +got):\n%s", diff)
	}
}

func TestNew_CorruptPersistenceStartsEmpty(t *testing.T) {
	p := NewMemoryPersistence()
	if err := p.Save(DefaultKey, []byte("{not json")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	var buf bytes.Buffer
	q := newQueue(t, Options{
		Persistence: p,
		Logger:      slog.New(slog.NewTextHandler(&buf, nil)),
	})
	if q.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", q.PendingCount())
	}
	if !strings.Contains(buf.String(), "pending queue discarded") {
		t.Fatalf("expected an error log, got %q", buf.String())
	}

	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "n1", nil)
	data, _ := p.Load(DefaultKey)
	if !strings.Contains(string(data), `"entityId":"n1"`) {
		t.Fatalf("queue not persisted after enqueue: %s", data)
	}
}

func TestQueue_SQLitePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jotline.sqlite")
	db, err := store.OpenSQLitePath(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLitePath: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	q := newQueue(t, Options{Persistence: db})
	mustEnqueue(t, q, model.OpUpdate, model.EntityNode, "n1", map[string]any{"content": "a"})
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := newQueue(t, Options{Persistence: db})
	ops := reopened.Pending()
	if len(ops) != 1 || ops[0].EntityID != "n1" || ops[0].Payload["content"] != "a" {
		t.Fatalf("restored = %+v", ops)
	}
}

func TestRun_StopsWithContext(t *testing.T) {
	q := newQueue(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.RegisterHandler(model.EntityNode, model.OpCreate, func(context.Context, model.PendingOperation) error {
		cancel()
		return nil
	})
	mustEnqueue(t, q, model.OpCreate, model.EntityNode, "n1", nil)

	if err := q.Run(ctx, time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if q.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", q.PendingCount())
	}
}
