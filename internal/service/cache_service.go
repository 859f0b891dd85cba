package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

const revokedSessionPrefix = "session:revoked:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService holds the two things the portal keeps in Redis: the admin
// dashboard snapshot and the ids of sessions ended by logout. Without Redis
// the dashboard is recomputed per request and logout only clears the cookie.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get loads key into dest and reports a hit. Misses and a disabled cache
// both return false without error.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key; a non-positive ttl uses the dashboard TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate drops every key matching pattern, e.g. after a status change
// makes the dashboard counts stale.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// RevokeSession records a logged-out token id until it would have expired.
func (s *CacheService) RevokeSession(ctx context.Context, ns models.Namespace, tokenID string, ttl time.Duration) error {
	if !s.Enabled() || tokenID == "" || ttl <= 0 {
		return nil
	}
	return s.Set(ctx, revokedSessionKey(ns, tokenID), true, ttl)
}

// SessionRevoked reports whether tokenID was logged out. Lookup failures
// admit the token; the JWT expiry still bounds its lifetime.
func (s *CacheService) SessionRevoked(ctx context.Context, ns models.Namespace, tokenID string) bool {
	if !s.Enabled() || tokenID == "" {
		return false
	}
	ok, err := s.repo.Exists(ctx, revokedSessionKey(ns, tokenID))
	if err != nil {
		s.logger.Warn("session revocation lookup failed", zap.String("namespace", string(ns)), zap.Error(err))
		return false
	}
	return ok
}

func revokedSessionKey(ns models.Namespace, tokenID string) string {
	return revokedSessionPrefix + string(ns) + ":" + tokenID
}
