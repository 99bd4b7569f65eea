package repository

import (
	"context"
	"errors"
	"time"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
	"ChartSignal/pkg/cache"
	applogger "ChartSignal/pkg/logger"
)

// CachedResults adapts a cache.Service to ResultCache. A nil service disables caching.
type CachedResults struct {
	svc cache.Service
	ttl time.Duration
	l   *applogger.Logger
}

func NewCachedResults(svc cache.Service, ttl time.Duration, l *applogger.Logger) *CachedResults {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedResults{svc: svc, ttl: ttl, l: l}
}

func (c *CachedResults) Get(ctx context.Context, key string) (*models.AnalysisResult, bool) {
	if c.svc == nil {
		return nil, false
	}
	var r models.AnalysisResult
	if err := c.svc.Get(ctx, key, &r); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.l.Warn("result cache read failed", applogger.String("key", key), applogger.Error(err))
		}
		return nil, false
	}
	return &r, true
}

func (c *CachedResults) Set(ctx context.Context, key string, r *models.AnalysisResult) error {
	if c.svc == nil {
		return nil
	}
	return c.svc.Set(ctx, key, r, c.ttl)
}

var _ domrepo.ResultCache = (*CachedResults)(nil)
