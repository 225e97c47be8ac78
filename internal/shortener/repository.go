package shortener

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("short url not found")
	ErrAliasConflict     = errors.New("short code already in use")
	ErrInvalidCode       = errors.New("invalid short code")
	ErrInvalidURL        = errors.New("invalid url")
	ErrInvalidExpiration = errors.New("invalid expiration")
	ErrStorageFailure    = errors.New("storage failure")
)

// ReadRepository looks up live records. Expired and deleted records are reported as ErrNotFound.
type ReadRepository interface {
	Get(ctx context.Context, code Code) (*Record, error)
	Exists(ctx context.Context, code Code) (bool, error)
}

// Repository adds writes to ReadRepository.
type Repository interface {
	ReadRepository

	// Put stores rec under code. Without overwrite it fails with ErrAliasConflict
	// when a live record already holds the code.
	Put(ctx context.Context, code Code, rec *Record, overwrite bool) error

	// Delete removes the record. It reports whether a live record was removed
	// and is safe to repeat.
	Delete(ctx context.Context, code Code) (bool, error)
}
