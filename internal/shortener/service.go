package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/wormhole/internal/events"
	"github.com/serroba/wormhole/internal/messaging"
	"go.uber.org/zap"
)

// maxGenerateAttempts bounds retries when a generated code is already taken.
const maxGenerateAttempts = 3

// ShortenParams describes a link to create.
type ShortenParams struct {
	OriginalURL string
	CustomAlias string // empty requests a generated code
	Expiration  Expiration
}

// Service creates, resolves and deletes short links.
type Service struct {
	repo           Repository
	generate       CodeGenerator
	nodeID         uint8
	publishCreated messaging.Publish[events.LinkCreated]
	publishDeleted messaging.Publish[events.LinkDeleted]
	logger         *zap.Logger
}

// NewService wires a service. nodeID is stamped on published events.
func NewService(
	repo Repository,
	generate CodeGenerator,
	nodeID uint8,
	publishCreated messaging.Publish[events.LinkCreated],
	publishDeleted messaging.Publish[events.LinkDeleted],
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:           repo,
		generate:       generate,
		nodeID:         nodeID,
		publishCreated: publishCreated,
		publishDeleted: publishDeleted,
		logger:         logger,
	}
}

// Shorten stores a new link and returns its record.
func (s *Service) Shorten(ctx context.Context, p ShortenParams) (*Record, error) {
	originalURL, err := NormalizeURL(p.OriginalURL)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	expireAt, err := p.Expiration.Resolve(now)
	if err != nil {
		return nil, err
	}

	rec := &Record{OriginalURL: originalURL, ExpireAt: expireAt, CreatedAt: now}

	if p.CustomAlias != "" {
		code, err := NewCode(p.CustomAlias)
		if err != nil {
			return nil, err
		}

		rec.Code = code
		if err := s.repo.Put(ctx, code, rec, false); err != nil {
			return nil, err
		}
	} else if err := s.putGenerated(ctx, rec); err != nil {
		return nil, err
	}

	s.publishLinkCreated(ctx, rec)

	return rec, nil
}

func (s *Service) putGenerated(ctx context.Context, rec *Record) error {
	var err error

	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		var code Code

		code, err = s.generate()
		if err != nil {
			return err
		}

		rec.Code = code

		err = s.repo.Put(ctx, code, rec, false)
		if !errors.Is(err, ErrAliasConflict) {
			return err
		}

		s.logger.Warn("generated code collided",
			zap.String("code", code.String()),
			zap.Int("attempt", attempt),
		)
	}

	return fmt.Errorf("no free code after %d attempts: %w", maxGenerateAttempts, err)
}

// Resolve returns the live record for code.
func (s *Service) Resolve(ctx context.Context, code Code) (*Record, error) {
	rec, err := s.repo.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if rec.Expired(time.Now()) {
		return nil, ErrNotFound
	}

	return rec, nil
}

// Delete removes the link. It reports whether a live link was removed.
func (s *Service) Delete(ctx context.Context, code Code) (bool, error) {
	removed, err := s.repo.Delete(ctx, code)
	if err != nil {
		return false, err
	}

	if removed {
		event := &events.LinkDeleted{Code: code.String(), DeletedAt: time.Now(), NodeID: s.nodeID}
		if err := s.publishDeleted(ctx, event); err != nil {
			s.logger.Error("failed to publish link deleted event",
				zap.String("code", event.Code),
				zap.Error(err),
			)
		}
	}

	return removed, nil
}

func (s *Service) publishLinkCreated(ctx context.Context, rec *Record) {
	meta := events.RequestMetaFromContext(ctx)
	event := &events.LinkCreated{
		Code:        rec.Code.String(),
		Kind:        rec.Code.Kind().String(),
		OriginalURL: rec.OriginalURL,
		CreatedAt:   rec.CreatedAt,
		NodeID:      s.nodeID,
		ClientIP:    meta.ClientIP,
		UserAgent:   meta.UserAgent,
	}

	if !rec.ExpireAt.IsZero() {
		expireAt := rec.ExpireAt
		event.ExpireAt = &expireAt
	}

	if err := s.publishCreated(ctx, event); err != nil {
		s.logger.Error("failed to publish link created event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}
}
