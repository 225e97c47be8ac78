package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/serroba/wormhole/internal/events"
	"github.com/serroba/wormhole/internal/messaging"
	"github.com/serroba/wormhole/internal/shortener"
	"go.uber.org/zap"
)

// LinkService is the link lifecycle the handlers expose.
type LinkService interface {
	Shorten(ctx context.Context, p shortener.ShortenParams) (*shortener.Record, error)
	Resolve(ctx context.Context, code shortener.Code) (*shortener.Record, error)
	Delete(ctx context.Context, code shortener.Code) (bool, error)
}

// LinkHandler handles short link operations.
type LinkHandler struct {
	service         LinkService
	baseURL         string
	publishResolved messaging.Publish[events.LinkResolved]
	logger          *zap.Logger
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(
	service LinkService,
	baseURL string,
	publishResolved messaging.Publish[events.LinkResolved],
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		service:         service,
		baseURL:         baseURL,
		publishResolved: publishResolved,
		logger:          logger,
	}
}

func (h *LinkHandler) Shorten(ctx context.Context, req *ShortenRequest) (*ShortenResponse, error) {
	if _, ok := reservedAliases[req.Body.Alias]; ok {
		return nil, h.fail("shorten", fmt.Errorf("%w: %q is reserved", shortener.ErrInvalidCode, req.Body.Alias))
	}

	expiration, err := parseExpiration(req.Body.ExpireAt, req.Body.ExpiresIn)
	if err != nil {
		return nil, h.fail("shorten", err)
	}

	rec, err := h.service.Shorten(ctx, shortener.ShortenParams{
		OriginalURL: req.Body.URL,
		CustomAlias: req.Body.Alias,
		Expiration:  expiration,
	})
	if err != nil {
		return nil, h.fail("shorten", err)
	}

	resp := &ShortenResponse{Body: newLinkBody(rec, h.baseURL)}
	resp.Location = resp.Body.ShortURL

	return resp, nil
}

func (h *LinkHandler) Redirect(ctx context.Context, req *CodeRequest) (*RedirectResponse, error) {
	rec, err := h.resolve(ctx, req.Code)
	if err != nil {
		return nil, h.fail("redirect", err)
	}

	meta := events.RequestMetaFromContext(ctx)
	event := &events.LinkResolved{
		Code:       rec.Code.String(),
		ResolvedAt: time.Now(),
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		Referrer:   meta.Referrer,
	}

	if err := h.publishResolved(ctx, event); err != nil {
		h.logger.Error("failed to publish link resolved event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}

	return &RedirectResponse{
		Status:   http.StatusMovedPermanently,
		Location: rec.OriginalURL,
	}, nil
}

func (h *LinkHandler) Inspect(ctx context.Context, req *CodeRequest) (*LinkResponse, error) {
	rec, err := h.resolve(ctx, req.Code)
	if err != nil {
		return nil, h.fail("inspect", err)
	}

	return &LinkResponse{Body: newLinkBody(rec, h.baseURL)}, nil
}

func (h *LinkHandler) Delete(ctx context.Context, req *CodeRequest) (*struct{}, error) {
	code, err := shortener.NewCode(req.Code)
	if err != nil {
		return nil, h.fail("delete", err)
	}

	removed, err := h.service.Delete(ctx, code)
	if err != nil {
		return nil, h.fail("delete", err)
	}

	if !removed {
		return nil, h.fail("delete", shortener.ErrNotFound)
	}

	return nil, nil
}

func (h *LinkHandler) resolve(ctx context.Context, raw string) (*shortener.Record, error) {
	code, err := shortener.NewCode(raw)
	if err != nil {
		return nil, err
	}

	return h.service.Resolve(ctx, code)
}

// fail converts err and logs the server-side ones.
func (h *LinkHandler) fail(op string, err error) error {
	herr := toHTTPError(err)
	if herr.GetStatus() >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	}

	return herr
}

// maxExpiresIn keeps expiresIn representable as a time.Duration.
const maxExpiresIn = int64(math.MaxInt64 / int64(time.Second))

func parseExpiration(at *time.Time, inSeconds int64) (shortener.Expiration, error) {
	switch {
	case at != nil && inSeconds != 0:
		return shortener.Expiration{}, fmt.Errorf("%w: set expireAt or expiresIn, not both", shortener.ErrInvalidExpiration)
	case inSeconds > maxExpiresIn:
		return shortener.Expiration{}, fmt.Errorf("%w: expiresIn %d is too large", shortener.ErrInvalidExpiration, inSeconds)
	case at != nil:
		return shortener.ExpireAt(*at), nil
	case inSeconds != 0:
		return shortener.ExpireAfter(time.Duration(inSeconds) * time.Second), nil
	default:
		return shortener.Never(), nil
	}
}
