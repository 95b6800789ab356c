package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jotline/internal/model"
)

const DefaultRedisPrefix = "jotline:"

// Redis mirrors each entity as a hash of JSON-encoded fields, so updates merge
// field by field. A set per entity kind indexes the ids.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(redisURL, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWithClient(client, prefix), nil
}

func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) key(entity model.EntityKind, id string) string {
	return r.prefix + string(entity) + ":" + id
}

func (r *Redis) indexKey(entity model.EntityKind) string {
	return r.prefix + string(entity) + "s"
}

func encodeFields(payload map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}

func (r *Redis) Create(ctx context.Context, entity model.EntityKind, id string, payload map[string]any) error {
	fields, err := encodeFields(payload)
	if err != nil {
		return err
	}
	key := r.key(entity, id)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(fields) > 0 {
			p.HSet(ctx, key, fields)
		}
		p.SAdd(ctx, r.indexKey(entity), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis create %s %s: %w", entity, id, err)
	}
	return nil
}

func (r *Redis) Update(ctx context.Context, entity model.EntityKind, id string, payload map[string]any) error {
	fields, err := encodeFields(payload)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	key := r.key(entity, id)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fields)
		p.SAdd(ctx, r.indexKey(entity), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis update %s %s: %w", entity, id, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, entity model.EntityKind, id string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.key(entity, id))
		p.SRem(ctx, r.indexKey(entity), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %s %s: %w", entity, id, err)
	}
	return nil
}

// Get returns the mirrored fields of one entity, or nil when it is absent.
func (r *Redis) Get(ctx context.Context, entity model.EntityKind, id string) (map[string]any, error) {
	raw, err := r.client.HGetAll(ctx, r.key(entity, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get %s %s: %w", entity, id, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		var x any
		if err := json.Unmarshal([]byte(v), &x); err != nil {
			return nil, fmt.Errorf("decode field %s: %w", k, err)
		}
		out[k] = x
	}
	return out, nil
}

// IDs lists the mirrored ids of one entity kind.
func (r *Redis) IDs(ctx context.Context, entity model.EntityKind) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey(entity)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ids %s: %w", entity, err)
	}
	return ids, nil
}
