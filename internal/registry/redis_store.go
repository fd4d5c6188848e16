package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists products as JSON documents in Redis.
//
//	<prefix>:product:<id>    product JSON
//	<prefix>:products        sorted set of ids scored by insertion sequence
//	<prefix>:owner:<email>   set of ids owned by email
//	<prefix>:seq             insertion counter
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis at addr
func NewRedisStore(addr string, db int, prefix string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return NewRedisStoreWithClient(client, prefix)
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pricewatch"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) productKey(id string) string {
	return s.prefix + ":product:" + id
}

func (s *RedisStore) idsKey() string {
	return s.prefix + ":products"
}

func (s *RedisStore) ownerKey(email string) string {
	return s.prefix + ":owner:" + email
}

func (s *RedisStore) seqKey() string {
	return s.prefix + ":seq"
}

// Get loads a product
func (s *RedisStore) Get(ctx context.Context, id string) (*TrackedProduct, bool, error) {
	data, err := s.client.Get(ctx, s.productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var p TrackedProduct
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("decode product %s: %w", id, err)
	}
	if p.PriceHistory == nil {
		p.PriceHistory = []PricePoint{}
	}
	return &p, true, nil
}

// Put writes the product and its index entries in one transaction
func (s *RedisStore) Put(ctx context.Context, p *TrackedProduct) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product %s: %w", p.ID, err)
	}

	previous, found, err := s.Get(ctx, p.ID)
	if err != nil {
		return err
	}

	var seq int64
	if !found {
		seq, err = s.client.Incr(ctx, s.seqKey()).Result()
		if err != nil {
			return err
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.productKey(p.ID), data, 0)
		if !found {
			pipe.ZAddNX(ctx, s.idsKey(), redis.Z{Score: float64(seq), Member: p.ID})
		}
		if found && previous.OwnerEmail != p.OwnerEmail {
			pipe.SRem(ctx, s.ownerKey(previous.OwnerEmail), p.ID)
		}
		pipe.SAdd(ctx, s.ownerKey(p.OwnerEmail), p.ID)
		return nil
	})
	return err
}

// Delete removes the product and its index entries
func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	p, found, err := s.Get(ctx, id)
	if err != nil || !found {
		return false, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.productKey(id))
		pipe.ZRem(ctx, s.idsKey(), id)
		pipe.SRem(ctx, s.ownerKey(p.OwnerEmail), id)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns products in insertion order
func (s *RedisStore) List(ctx context.Context) ([]TrackedProduct, error) {
	ids, err := s.client.ZRange(ctx, s.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, ids)
}

// ListByOwner returns the owner's products in insertion order
func (s *RedisStore) ListByOwner(ctx context.Context, email string) ([]TrackedProduct, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	owned, err := s.client.SMembers(ctx, s.ownerKey(email)).Result()
	if err != nil {
		return nil, err
	}
	members := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		members[id] = struct{}{}
	}

	out := make([]TrackedProduct, 0, len(owned))
	for _, p := range all {
		if _, ok := members[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Count returns the number of products
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.idsKey()).Result()
	return int(n), err
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) load(ctx context.Context, ids []string) ([]TrackedProduct, error) {
	out := make([]TrackedProduct, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.productKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a document, removed concurrently
			continue
		}
		var p TrackedProduct
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", ids[i], err)
		}
		if p.PriceHistory == nil {
			p.PriceHistory = []PricePoint{}
		}
		out = append(out, p)
	}
	return out, nil
}
