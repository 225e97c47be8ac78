package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/wormhole/internal/shortener"
)

// DefaultKeyPrefix namespaces cache keys in a shared Redis.
const DefaultKeyPrefix = "wh:url:"

// Redis is the shared remote tier. Values are JSON; unreadable values count as misses.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a tier over client.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &Redis{client: client, prefix: prefix}
}

type redisEntry struct {
	Absent      bool      `json:"absent,omitempty"`
	Code        string    `json:"code,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	OriginalURL string    `json:"original_url,omitempty"`
	ExpireAt    int64     `json:"expire_at,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}

		return Entry{}, false, unavailable("get", err)
	}

	var v redisEntry
	if err := json.Unmarshal(raw, &v); err != nil {
		return Entry{}, false, nil
	}

	if v.Absent {
		return Absent(), true, nil
	}

	rec := &shortener.Record{
		Code:        shortener.TrustedCode(v.Code, shortener.ParseKind(v.Kind)),
		OriginalURL: v.OriginalURL,
		CreatedAt:   v.CreatedAt,
	}
	if v.ExpireAt > 0 {
		rec.ExpireAt = time.Unix(v.ExpireAt, 0)
	}

	return Found(rec), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return r.Delete(ctx, key)
	}

	v := redisEntry{Absent: entry.IsAbsent()}
	if rec := entry.Record; rec != nil {
		v.Code = rec.Code.String()
		v.Kind = rec.Code.Kind().String()
		v.OriginalURL = rec.OriginalURL
		v.CreatedAt = rec.CreatedAt

		if !rec.ExpireAt.IsZero() {
			v.ExpireAt = rec.ExpireAt.Unix()
		}
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := r.client.Set(ctx, r.prefix+key, payload, ttl).Err(); err != nil {
		return unavailable("set", err)
	}

	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return unavailable("del", err)
	}

	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client. Only call it on tiers that own their client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// unavailable maps every non-nil Redis error, including READONLY replies from
// a demoted primary and LOADING replies from a restarting one, to ErrUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %w", ErrUnavailable, op, err)
}

var _ Store = (*Redis)(nil)
