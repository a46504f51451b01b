package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
)

const directoryCachePrefix = "directory:profile:"

type directoryRepository interface {
	FindByMatric(ctx context.Context, matric string) (*models.DirectoryProfile, error)
}

type profileCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DirectoryService resolves matriculation numbers against the read-only student records view.
type DirectoryService struct {
	repo   directoryRepository
	cache  profileCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewDirectoryService constructs a DirectoryService. cache may be nil.
func NewDirectoryService(repo directoryRepository, cache profileCache, ttl time.Duration, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Lookup returns the verified profile for matric.
func (s *DirectoryService) Lookup(ctx context.Context, matric string) (*models.DirectoryProfile, error) {
	profile, _, err := s.LookupCached(ctx, matric)
	return profile, err
}

// LookupCached is Lookup that also reports whether the profile was served from cache.
func (s *DirectoryService) LookupCached(ctx context.Context, matric string) (*models.DirectoryProfile, bool, error) {
	matric = models.NormalizeMatric(matric)
	if matric == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "matric_no is required")
	}

	key := directoryCachePrefix + matric
	if s.cache != nil {
		var cached models.DirectoryProfile
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	profile, err := s.repo.FindByMatric(ctx, matric)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student record not found")
		}
		s.logger.Error("directory lookup failed", zap.String("matric_no", matric), zap.Error(err))
		return nil, false, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "student directory unavailable")
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, profile, s.ttl)
	}
	return profile, false, nil
}
