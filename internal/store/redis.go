package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/wormhole/internal/shortener"
)

// RedisStore is a Redis implementation of shortener.Repository. Expiring
// records carry a matching key expiry, so Redis drops them on its own.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a new Redis-backed URL store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "wh:link:",
		now:    time.Now,
	}
}

type redisRecord struct {
	Code        string    `json:"code"`
	Kind        string    `json:"kind"`
	OriginalURL string    `json:"original_url"`
	ExpireAt    int64     `json:"expire_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *RedisStore) Get(ctx context.Context, code shortener.Code) (*shortener.Record, error) {
	raw, err := r.client.Get(ctx, r.prefix+code.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shortener.ErrNotFound
		}

		return nil, storageFailure("get", err)
	}

	rec, err := decodeRedisRecord(raw)
	if err != nil {
		return nil, err
	}

	if rec.Expired(r.now()) {
		return nil, shortener.ErrNotFound
	}

	return rec, nil
}

func decodeRedisRecord(raw []byte) (*shortener.Record, error) {
	var v redisRecord
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, storageFailure("decode", err)
	}

	rec := &shortener.Record{
		Code:        shortener.TrustedCode(v.Code, shortener.ParseKind(v.Kind)),
		OriginalURL: v.OriginalURL,
		CreatedAt:   v.CreatedAt,
	}
	if v.ExpireAt > 0 {
		rec.ExpireAt = time.Unix(v.ExpireAt, 0)
	}

	return rec, nil
}

func (r *RedisStore) Exists(ctx context.Context, code shortener.Code) (bool, error) {
	_, err := r.Get(ctx, code)
	if errors.Is(err, shortener.ErrNotFound) {
		return false, nil
	}

	return err == nil, err
}

// Put writes with SET NX unless overwrite is set. A record already past its
// expiry is never written; it only clears the key when allowed to.
func (r *RedisStore) Put(ctx context.Context, code shortener.Code, rec *shortener.Record, overwrite bool) error {
	key := r.prefix + code.String()

	if rec.Expired(r.now()) {
		return r.putExpired(ctx, code, overwrite)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	v := redisRecord{
		Code:        code.String(),
		Kind:        code.Kind().String(),
		OriginalURL: rec.OriginalURL,
		CreatedAt:   createdAt,
	}
	if !rec.ExpireAt.IsZero() {
		v.ExpireAt = rec.ExpireAt.Unix()
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return storageFailure("encode", err)
	}

	args := redis.SetArgs{ExpireAt: rec.ExpireAt}
	if !overwrite {
		args.Mode = "NX"
	}

	err = r.client.SetArgs(ctx, key, raw, args).Err()
	if errors.Is(err, redis.Nil) {
		return r.replaceExpired(ctx, key, raw, rec.ExpireAt)
	}

	if err != nil {
		return storageFailure("put", err)
	}

	return nil
}

// replaceExpired handles a lost SET NX. The key may still hold a record past
// its expiry that Redis has not evicted yet, which must not block the write.
// The check and the write run under WATCH so a concurrent writer wins cleanly.
func (r *RedisStore) replaceExpired(ctx context.Context, key string, raw []byte, expireAt time.Time) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return storageFailure("get", err)
		}

		if err == nil {
			existing, err := decodeRedisRecord(current)
			if err != nil {
				return err
			}

			if !existing.Expired(r.now()) {
				return shortener.ErrAliasConflict
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, raw, redis.SetArgs{ExpireAt: expireAt})

			return nil
		})

		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return shortener.ErrAliasConflict
	case errors.Is(err, shortener.ErrAliasConflict), errors.Is(err, shortener.ErrStorageFailure):
		return err
	default:
		return storageFailure("put", err)
	}
}

func (r *RedisStore) putExpired(ctx context.Context, code shortener.Code, overwrite bool) error {
	if !overwrite {
		live, err := r.Exists(ctx, code)
		if err != nil {
			return err
		}

		if live {
			return shortener.ErrAliasConflict
		}
	}

	_, err := r.Delete(ctx, code)

	return err
}

func (r *RedisStore) Delete(ctx context.Context, code shortener.Code) (bool, error) {
	n, err := r.client.Del(ctx, r.prefix+code.String()).Result()
	if err != nil {
		return false, storageFailure("delete", err)
	}

	return n > 0, nil
}

var _ shortener.Repository = (*RedisStore)(nil)
