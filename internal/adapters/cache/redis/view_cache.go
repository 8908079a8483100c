package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"turnos-gateway/internal/domain/turnos"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "turnos:view:"

// replaceScript escribe el registro solo si ya estaba en la vista.
var replaceScript = goredis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0
`)

// ViewCache guarda la vista de turnos por sesión:
//   - turnos:view:{sesión}:records  hash id -> JSON del turno
//   - turnos:view:{sesión}:q:{hash}  JSON con los ids de la lista, en orden
type ViewCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewViewCache: ttl <= 0 usa 10 minutos.
func NewViewCache(client *goredis.Client, ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ViewCache{client: client, ttl: ttl}
}

var _ turnos.ViewCache = (*ViewCache)(nil)

// Open crea el cliente y verifica la conexión.
func Open(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

func recordsKey(session string) string {
	return keyPrefix + session + ":records"
}

func queryKey(session, query string) string {
	sum := sha256.Sum256([]byte(query))
	return keyPrefix + session + ":q:" + hex.EncodeToString(sum[:8])
}

func (c *ViewCache) Store(ctx context.Context, session, query string, items []turnos.Turno) error {
	ids := make([]string, 0, len(items))
	fields := make(map[string]any, len(items))
	for _, t := range items {
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		fields[t.ID] = b
		ids = append(ids, t.ID)
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	rk := recordsKey(session)
	_, err = c.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		if len(fields) > 0 {
			p.HSet(ctx, rk, fields)
		}
		p.Expire(ctx, rk, c.ttl)
		p.Set(ctx, queryKey(session, query), idsJSON, c.ttl)
		return nil
	})
	return err
}

func (c *ViewCache) List(ctx context.Context, session, query string) ([]turnos.Turno, bool, error) {
	raw, err := c.client.Get(ctx, queryKey(session, query)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false, nil
	}
	if len(ids) == 0 {
		return []turnos.Turno{}, true, nil
	}

	vals, err := c.client.HMGet(ctx, recordsKey(session), ids...).Result()
	if err != nil {
		return nil, false, err
	}

	out := make([]turnos.Turno, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// el hash expiró antes que la lista
			return nil, false, nil
		}
		var t turnos.Turno
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, false, nil
		}
		out = append(out, t)
	}
	return out, true, nil
}

func (c *ViewCache) Get(ctx context.Context, session, id string) (turnos.Turno, bool, error) {
	raw, err := c.client.HGet(ctx, recordsKey(session), id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return turnos.Turno{}, false, nil
	}
	if err != nil {
		return turnos.Turno{}, false, err
	}

	var t turnos.Turno
	if err := json.Unmarshal(raw, &t); err != nil {
		return turnos.Turno{}, false, nil
	}
	return t, true, nil
}

func (c *ViewCache) Replace(ctx context.Context, session string, t turnos.Turno) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return replaceScript.Run(ctx, c.client, []string{recordsKey(session)}, t.ID, b).Err()
}
