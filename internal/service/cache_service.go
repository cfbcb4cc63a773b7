package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

const (
	analyticsCachePrefix = "analytics"
	defaultCacheTTL      = 10 * time.Minute
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService is a read-through cache for analytics payloads. A nil or
// disabled service always misses and never stores, so callers need no
// special casing when Redis is off.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service; ttl <= 0 selects ten minutes.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled && repo != nil}
}

func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled
}

// Remember fills dest from the cache, or runs load and caches dest on a
// miss. Cache faults degrade to load; only load errors are returned.
func (s *CacheService) Remember(ctx context.Context, key string, dest interface{}, load func() error) (bool, error) {
	if s.lookup(ctx, key, dest) {
		return true, nil
	}
	if err := load(); err != nil {
		return false, err
	}
	s.store(ctx, key, dest)
	return false, nil
}

func (s *CacheService) lookup(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

func (s *CacheService) store(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateAnalytics drops every cached analytics payload. Called after
// every write that moves a platform counter.
func (s *CacheService) InvalidateAnalytics(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	pattern := analyticsCachePrefix + ":*"
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// analyticsCacheKey joins parts under the analytics namespace; blank parts
// become "-" so keys stay positional.
func analyticsCacheKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(analyticsCachePrefix)
	for _, p := range parts {
		b.WriteByte(':')
		if p = strings.TrimSpace(p); p == "" {
			p = "-"
		}
		b.WriteString(p)
	}
	return b.String()
}
