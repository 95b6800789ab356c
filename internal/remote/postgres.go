package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"jotline/internal/model"
)

// Postgres mirrors each entity as one jsonb document. Updates merge the
// payload's top-level keys into the stored document.
type Postgres struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	p := &Postgres{db: db}
	if err := p.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS jotline_entities (
	entity_kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	doc JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (entity_kind, entity_id)
)`)
	if err != nil {
		return fmt.Errorf("migrate jotline_entities: %w", err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, entity model.EntityKind, id string, payload map[string]any) error {
	doc, err := json.Marshal(nonNil(payload))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
INSERT INTO jotline_entities (entity_kind, entity_id, doc, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (entity_kind, entity_id) DO UPDATE SET doc = excluded.doc, updated_at = now()`,
		string(entity), id, string(doc))
	if err != nil {
		return fmt.Errorf("postgres create %s %s: %w", entity, id, err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, entity model.EntityKind, id string, payload map[string]any) error {
	doc, err := json.Marshal(nonNil(payload))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
INSERT INTO jotline_entities (entity_kind, entity_id, doc, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (entity_kind, entity_id) DO UPDATE
SET doc = jotline_entities.doc || excluded.doc, updated_at = now()`,
		string(entity), id, string(doc))
	if err != nil {
		return fmt.Errorf("postgres update %s %s: %w", entity, id, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, entity model.EntityKind, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM jotline_entities WHERE entity_kind = $1 AND entity_id = $2`, string(entity), id)
	if err != nil {
		return fmt.Errorf("postgres delete %s %s: %w", entity, id, err)
	}
	return nil
}

// Get returns the mirrored document of one entity, or nil when it is absent.
func (p *Postgres) Get(ctx context.Context, entity model.EntityKind, id string) (map[string]any, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT doc FROM jotline_entities WHERE entity_kind = $1 AND entity_id = $2`, string(entity), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s %s: %w", entity, id, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode doc: %w", err)
	}
	return out, nil
}

func nonNil(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}
