package syncq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"jotline/internal/model"
	"jotline/internal/store"
)

const (
	DefaultKey           = "pending_ops"
	DefaultMaxRetries    = 5
	DefaultFlushInterval = 5 * time.Second
)

// Handler performs one pending operation against a remote. A nil error
// confirms the write.
type Handler func(ctx context.Context, op model.PendingOperation) error

type Options struct {
	Persistence Persistence
	Key         string
	MaxRetries  int
	Clock       func() time.Time
	Logger      *slog.Logger

	// OnTerminal is called once for every operation dropped after its last
	// retry.
	OnTerminal func(*TerminalError)
}

// Report summarizes one flush cycle.
type Report struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
	Unhandled int `json:"unhandled"`

	// Skipped is set when another flush was already running.
	Skipped bool `json:"skipped,omitempty"`
}

type entityKey struct {
	kind model.EntityKind
	id   string
}

func keyOf(op model.PendingOperation) entityKey { return entityKey{op.EntityKind, op.EntityID} }

// Queue holds at most one pending operation per entity. Later writes for the
// same entity are merged into the queued one.
type Queue struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	ops      []model.PendingOperation
	handlers map[string]Handler
	inflight map[entityKey]string
	flushing bool
	closed   bool
}

// New builds a queue and restores any operations saved under opts.Key. A
// corrupt saved queue is discarded and logged; only a failing Load is an error.
func New(opts Options) (*Queue, error) {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Persistence == nil {
		opts.Persistence = NewMemoryPersistence()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	q := &Queue{
		opts:     opts,
		logger:   logger,
		handlers: map[string]Handler{},
		inflight: map[entityKey]string{},
	}
	if err := q.load(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) load() error {
	data, err := q.opts.Persistence.Load(q.opts.Key)
	if err != nil {
		return fmt.Errorf("load pending queue: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var ops []model.PendingOperation
	if err := json.Unmarshal(data, &ops); err != nil {
		q.logger.Error("pending queue discarded: persisted state is corrupt",
			slog.String("key", q.opts.Key),
			slog.Int("bytes", len(data)),
			slog.Any("err", err),
		)
		return nil
	}
	seen := map[entityKey]bool{}
	for _, op := range ops {
		k := keyOf(op)
		if !op.Kind.Valid() || !op.EntityKind.Valid() || op.EntityID == "" || seen[k] {
			q.logger.Warn("pending operation discarded on load",
				slog.String("id", op.ID),
				slog.String("handler", op.HandlerKey()),
				slog.String("entity", op.EntityID),
			)
			continue
		}
		seen[k] = true
		q.ops = append(q.ops, op)
	}
	return nil
}

func (q *Queue) persistLocked() error {
	ops := q.ops
	if ops == nil {
		ops = []model.PendingOperation{}
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encode pending queue: %w", err)
	}
	if err := q.opts.Persistence.Save(q.opts.Key, data); err != nil {
		q.logger.Error("persist pending queue", slog.Int("pending", len(q.ops)), slog.Any("err", err))
		return fmt.Errorf("persist pending queue: %w", err)
	}
	return nil
}

func (q *Queue) indexLocked(k entityKey) int {
	for i := range q.ops {
		if keyOf(q.ops[i]) == k {
			return i
		}
	}
	return -1
}

// RegisterHandler sets the function flushes call for entity.kind operations.
func (q *Queue) RegisterHandler(entity model.EntityKind, kind model.OpKind, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := model.PendingOperation{EntityKind: entity, Kind: kind}.HandlerKey()
	if h == nil {
		delete(q.handlers, key)
		return
	}
	q.handlers[key] = h
}

// Enqueue records a write. An entity that already has a queued operation gets
// it merged:
//
//	delete after create  -> both removed (unless the create is in flight)
//	delete after update  -> replaced by the delete
//	update after create/update -> payload fields merged, kind kept
//	update after delete  -> ignored
//	create after delete  -> becomes an update with the new payload
func (q *Queue) Enqueue(kind model.OpKind, entity model.EntityKind, id string, payload map[string]any) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid operation kind %q", kind)
	}
	if !entity.Valid() {
		return fmt.Errorf("invalid entity kind %q", entity)
	}
	if id == "" {
		return errors.New("missing entity id")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	now := q.opts.Clock()
	k := entityKey{entity, id}
	i := q.indexLocked(k)
	if i < 0 {
		q.ops = append(q.ops, model.PendingOperation{
			ID:         store.NewID("op"),
			Kind:       kind,
			EntityKind: entity,
			EntityID:   id,
			Payload:    clonePayload(payload),
			EnqueuedAt: now,
			Rev:        1,
		})
		return q.persistLocked()
	}

	ex := &q.ops[i]
	switch kind {
	case model.OpDelete:
		switch {
		case ex.Kind == model.OpCreate && q.inflight[k] != ex.ID:
			q.logger.Debug("queued create cancelled by delete", slog.String("entity", id))
			q.ops = slices.Delete(q.ops, i, i+1)
			return q.persistLocked()
		case ex.Kind == model.OpDelete:
			ex.EnqueuedAt = now
		default:
			ex.Kind = model.OpDelete
			ex.Payload = clonePayload(payload)
			ex.RetryCount = 0
			ex.EnqueuedAt = now
			ex.Rev++
		}
	default:
		if ex.Kind == model.OpDelete {
			if kind == model.OpUpdate {
				q.logger.Debug("update after delete ignored", slog.String("entity", id))
				return nil
			}
			ex.Kind = model.OpUpdate
			ex.Payload = clonePayload(payload)
			ex.RetryCount = 0
		} else {
			ex.Payload = mergePayload(ex.Payload, payload)
		}
		ex.EnqueuedAt = now
		ex.Rev++
	}
	return q.persistLocked()
}

func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Pending returns a copy of the queue in FIFO order.
func (q *Queue) Pending() []model.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.PendingOperation, 0, len(q.ops))
	for _, op := range q.ops {
		out = append(out, cloneOp(op))
	}
	return out
}

// FlushNow attempts every entry queued when the cycle starts, in FIFO order.
// Entries enqueued meanwhile wait for the next cycle. A call that overlaps a
// running flush returns a Report with Skipped set. The returned error joins a
// TerminalError for each dropped operation.
func (q *Queue) FlushNow(ctx context.Context) (Report, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Report{}, ErrClosed
	}
	if q.flushing {
		q.mu.Unlock()
		return Report{Skipped: true}, nil
	}
	q.flushing = true
	snapshot := make([]string, 0, len(q.ops))
	keys := make([]entityKey, 0, len(q.ops))
	for _, op := range q.ops {
		snapshot = append(snapshot, op.ID)
		keys = append(keys, keyOf(op))
	}
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.flushing = false
		q.mu.Unlock()
	}()

	var (
		rep  Report
		errs []error
	)
	for i, opID := range snapshot {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		q.mu.Lock()
		j := q.indexLocked(keys[i])
		if j < 0 || q.ops[j].ID != opID {
			// Cancelled or replaced since the cycle started.
			q.mu.Unlock()
			continue
		}
		op := cloneOp(q.ops[j])
		h := q.handlers[op.HandlerKey()]
		if h == nil {
			q.mu.Unlock()
			rep.Unhandled++
			q.logger.Warn("pending operation skipped",
				slog.String("handler", op.HandlerKey()),
				slog.String("entity", op.EntityID),
				slog.Any("err", ErrNoHandler),
			)
			continue
		}
		q.inflight[keys[i]] = op.ID
		q.mu.Unlock()

		rep.Attempted++
		herr := h(ctx, op)

		q.mu.Lock()
		delete(q.inflight, keys[i])
		te := q.settleLocked(ctx, op, herr, &rep)
		q.mu.Unlock()
		if te != nil {
			errs = append(errs, te)
			if q.opts.OnTerminal != nil {
				q.opts.OnTerminal(te)
			}
		}
	}

	q.logger.Debug("flush cycle",
		slog.Int("attempted", rep.Attempted),
		slog.Int("succeeded", rep.Succeeded),
		slog.Int("failed", rep.Failed),
		slog.Int("dropped", rep.Dropped),
		slog.Int("pending", q.PendingCount()),
	)
	return rep, errors.Join(errs...)
}

// settleLocked applies a handler result to the live queue. The live entry may
// have been merged with newer writes while op was in flight; those are kept.
func (q *Queue) settleLocked(ctx context.Context, op model.PendingOperation, herr error, rep *Report) *TerminalError {
	i := q.indexLocked(keyOf(op))
	if i >= 0 && q.ops[i].ID != op.ID {
		i = -1
	}

	if herr == nil {
		rep.Succeeded++
		if i < 0 {
			return nil
		}
		live := &q.ops[i]
		switch {
		case live.Rev == op.Rev:
			q.ops = slices.Delete(q.ops, i, i+1)
		case live.Kind == model.OpCreate && op.Kind == model.OpCreate:
			// The entity now exists remotely; what is left is an update.
			live.Kind = model.OpUpdate
			live.RetryCount = 0
		default:
			live.RetryCount = 0
		}
		_ = q.persistLocked()
		return nil
	}

	if ctx.Err() != nil && errors.Is(herr, ctx.Err()) {
		// Interrupted, not failed.
		return nil
	}
	q.logger.Warn("sync handler failed",
		slog.String("handler", op.HandlerKey()),
		slog.String("entity", op.EntityID),
		slog.Int("attempt", op.RetryCount+1),
		slog.Any("err", herr),
	)
	if i < 0 {
		rep.Failed++
		return nil
	}
	live := &q.ops[i]
	if live.Kind == op.Kind {
		live.RetryCount++
	}
	if live.RetryCount < q.opts.MaxRetries {
		rep.Failed++
		_ = q.persistLocked()
		return nil
	}

	dropped := cloneOp(*live)
	q.ops = slices.Delete(q.ops, i, i+1)
	rep.Dropped++
	_ = q.persistLocked()
	q.logger.Error("sync operation dropped after max retries",
		slog.String("handler", dropped.HandlerKey()),
		slog.String("entity", dropped.EntityID),
		slog.Int("attempts", dropped.RetryCount),
		slog.Any("err", herr),
	)
	return &TerminalError{Op: dropped, Err: herr}
}

// Run flushes every interval until ctx is done.
func (q *Queue) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := q.FlushNow(ctx); err != nil && ctx.Err() == nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				q.logger.Error("flush cycle failed", slog.Any("err", err))
			}
		}
	}
}

// Close persists the queue and rejects further enqueues and flushes.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.persistLocked()
}

func clonePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func mergePayload(old, next map[string]any) map[string]any {
	out := clonePayload(old)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}

func cloneOp(op model.PendingOperation) model.PendingOperation {
	op.Payload = clonePayload(op.Payload)
	return op
}
