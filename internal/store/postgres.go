package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/wormhole/internal/shortener"
)

// PostgresStore is a PostgreSQL implementation of shortener.Repository.
// Deletes leave a tombstone in deleted_at so the row survives for auditing.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates a new PostgreSQL-backed URL store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

const liveCondition = `deleted_at IS NULL AND (expire_at IS NULL OR expire_at > $2)`

func (p *PostgresStore) Get(ctx context.Context, code shortener.Code) (*shortener.Record, error) {
	query := `
		SELECT short_code, kind, original_url, expire_at, created_at
		FROM short_urls
		WHERE short_code = $1 AND ` + liveCondition

	var (
		shortCode string
		kind      string
		rec       shortener.Record
		expireAt  *int64
	)

	err := p.pool.QueryRow(ctx, query, code.String(), p.now().Unix()).Scan(
		&shortCode,
		&kind,
		&rec.OriginalURL,
		&expireAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, storageFailure("get", err)
	}

	rec.Code = shortener.TrustedCode(shortCode, shortener.ParseKind(kind))
	if expireAt != nil {
		rec.ExpireAt = time.Unix(*expireAt, 0)
	}

	return &rec, nil
}

func (p *PostgresStore) Exists(ctx context.Context, code shortener.Code) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM short_urls WHERE short_code = $1 AND ` + liveCondition + `)`

	var ok bool
	if err := p.pool.QueryRow(ctx, query, code.String(), p.now().Unix()).Scan(&ok); err != nil {
		return false, storageFailure("exists", err)
	}

	return ok, nil
}

// Put inserts rec, replacing a tombstoned or expired row in the same statement.
// A live row is replaced only with overwrite; otherwise no row is touched and
// the call fails with ErrAliasConflict.
func (p *PostgresStore) Put(ctx context.Context, code shortener.Code, rec *shortener.Record, overwrite bool) error {
	query := `
		INSERT INTO short_urls (short_code, kind, original_url, expire_at, deleted_at, created_at)
		VALUES ($1, $3, $4, $5, NULL, $6)
		ON CONFLICT (short_code) DO UPDATE
		SET kind = EXCLUDED.kind,
			original_url = EXCLUDED.original_url,
			expire_at = EXCLUDED.expire_at,
			deleted_at = NULL,
			created_at = EXCLUDED.created_at
		WHERE $7::boolean
			OR short_urls.deleted_at IS NOT NULL
			OR (short_urls.expire_at IS NOT NULL AND short_urls.expire_at <= $2)
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = p.now()
	}

	tag, err := p.pool.Exec(ctx, query,
		code.String(),
		p.now().Unix(),
		code.Kind().String(),
		rec.OriginalURL,
		nullableUnix(rec.ExpireAt),
		createdAt,
		overwrite,
	)
	if err != nil {
		return storageFailure("put", err)
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrAliasConflict
	}

	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, code shortener.Code) (bool, error) {
	query := `UPDATE short_urls SET deleted_at = $2 WHERE short_code = $1 AND ` + liveCondition

	tag, err := p.pool.Exec(ctx, query, code.String(), p.now().Unix())
	if err != nil {
		return false, storageFailure("delete", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Ping reports whether the database answers.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func nullableUnix(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}

	secs := t.Unix()

	return &secs
}

func storageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", shortener.ErrStorageFailure, op, err)
}

var _ shortener.Repository = (*PostgresStore)(nil)
