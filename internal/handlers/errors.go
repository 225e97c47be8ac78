package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/wormhole/internal/cache"
	"github.com/serroba/wormhole/internal/shortener"
	"github.com/serroba/wormhole/internal/tinyflake"
)

// toHTTPError maps domain errors to API errors. Client errors carry the
// domain message; server errors keep details out of the response.
func toHTTPError(err error) huma.StatusError {
	switch {
	case errors.Is(err, shortener.ErrInvalidURL),
		errors.Is(err, shortener.ErrInvalidCode),
		errors.Is(err, shortener.ErrInvalidExpiration):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, shortener.ErrAliasConflict):
		return huma.Error409Conflict("short code already in use")
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error404NotFound("short url not found")
	case errors.Is(err, tinyflake.ErrEpochExhausted):
		return huma.Error500InternalServerError("identifier space exhausted")
	case errors.Is(err, tinyflake.ErrSequenceOverflow),
		errors.Is(err, tinyflake.ErrClockRollback),
		errors.Is(err, shortener.ErrStorageFailure),
		errors.Is(err, cache.ErrCoalesceTimeout):
		return huma.Error503ServiceUnavailable("temporarily unavailable, retry later")
	default:
		return huma.Error500InternalServerError("internal server error")
	}
}
