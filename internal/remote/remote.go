// Package remote holds sync handlers that mirror nodes and folders into a
// remote store.
package remote

import (
	"context"

	"jotline/internal/model"
	"jotline/internal/syncq"
)

// Registrar is satisfied by syncq.Queue and core.Core.
type Registrar interface {
	RegisterHandler(entity model.EntityKind, kind model.OpKind, h syncq.Handler)
}

// Transport applies one confirmed-kind write per call.
type Transport interface {
	Create(ctx context.Context, entity model.EntityKind, id string, payload map[string]any) error
	Update(ctx context.Context, entity model.EntityKind, id string, payload map[string]any) error
	Delete(ctx context.Context, entity model.EntityKind, id string) error
}

// Register wires t for every entity and operation kind.
func Register(r Registrar, t Transport) {
	for _, entity := range []model.EntityKind{model.EntityNode, model.EntityFolder} {
		r.RegisterHandler(entity, model.OpCreate, func(ctx context.Context, op model.PendingOperation) error {
			return t.Create(ctx, op.EntityKind, op.EntityID, op.Payload)
		})
		r.RegisterHandler(entity, model.OpUpdate, func(ctx context.Context, op model.PendingOperation) error {
			return t.Update(ctx, op.EntityKind, op.EntityID, op.Payload)
		})
		r.RegisterHandler(entity, model.OpDelete, func(ctx context.Context, op model.PendingOperation) error {
			return t.Delete(ctx, op.EntityKind, op.EntityID)
		})
	}
}
