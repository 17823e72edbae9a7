package cache

import (
	"go.uber.org/zap"

	"github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/infrastructure/config"
)

// NewRateLimitStore picks the store implementation from configuration. When
// Redis is disabled or unreachable it falls back to the in-memory store,
// which is correct for a single instance but does not share the quota across
// replicas.
func NewRateLimitStore(cfg config.RedisConfig, logger *zap.Logger) sync.RateLimitStore {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !cfg.Enabled {
		logger.Info("redis disabled, using in-memory rate limit store")
		return NewInMemoryRateLimitStore()
	}

	store, err := NewRedisRateLimitStore(cfg.Addr(), cfg.Password, cfg.DB)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory rate limit store",
			zap.String("addr", cfg.Addr()),
			zap.Error(err))
		return NewInMemoryRateLimitStore()
	}

	logger.Info("using redis rate limit store", zap.String("addr", cfg.Addr()))
	return store
}
