package wms

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erp/wms-sync/internal/domain/sync"
)

// adaptiveMultiplier inflates waits once quota usage crosses the adaptive
// threshold, slowing us down before the WMS has to
const adaptiveMultiplier = 2.0

// RateLimiterConfig tunes the limiter. Zero values fall back to the domain
// defaults.
type RateLimiterConfig struct {
	HourlyQuota        int
	BurstQuota         int
	RemainingThreshold int
	MaxWait            time.Duration
	AdaptiveRatio      float64
}

func (c *RateLimiterConfig) applyDefaults() {
	if c.HourlyQuota <= 0 {
		c.HourlyQuota = sync.DefaultHourlyQuota
	}
	if c.BurstQuota <= 0 {
		c.BurstQuota = sync.DefaultBurstQuota
	}
	if c.RemainingThreshold <= 0 {
		c.RemainingThreshold = sync.DefaultRemainingThreshold
	}
	if c.MaxWait <= 0 {
		c.MaxWait = sync.DefaultMaxWait
	}
	if c.AdaptiveRatio <= 0 {
		c.AdaptiveRatio = sync.DefaultAdaptiveRatio
	}
}

// RateLimiter gates the transport against the WMS quota. Status is shared
// through the store so overlapping invocations see one another's consumption.
// When the WMS omits rate-limit headers the limiter falls back to local fixed
// hourly and per-minute burst windows.
type RateLimiter struct {
	store  sync.RateLimitStore
	cfg    RateLimiterConfig
	logger *zap.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a rate limiter backed by the given status store
func NewRateLimiter(store sync.RateLimitStore, cfg RateLimiterConfig, logger *zap.Logger) *RateLimiter {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire blocks until a request slot is available, or fails fast with
// ErrRateLimited when the required wait exceeds the configured maximum.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	status, err := l.loadStatus(ctx)
	if err != nil {
		return err
	}

	now := l.now()
	wait := l.requiredWait(status, now)
	if wait <= 0 {
		return l.consume(ctx, status, now)
	}

	if status.AdaptiveMode {
		wait = time.Duration(float64(wait) * adaptiveMultiplier)
	}
	if wait > l.cfg.MaxWait {
		l.logger.Warn("rate limit wait exceeds maximum, failing fast",
			zap.Duration("wait", wait),
			zap.Duration("max_wait", l.cfg.MaxWait))
		return fmt.Errorf("%w: %s", sync.ErrRateLimited, (&sync.RateLimitWait{Wait: wait, Max: l.cfg.MaxWait}).Error())
	}

	l.logger.Info("rate limit wait",
		zap.Duration("wait", wait),
		zap.Int("remaining", status.Remaining),
		zap.Bool("adaptive", status.AdaptiveMode))
	if err := l.sleep(ctx, wait); err != nil {
		return fmt.Errorf("%w: wait interrupted: %v", sync.ErrRateLimited, err)
	}

	// Re-read after sleeping; another invocation may have consumed or
	// refreshed the shared status meanwhile
	status, err = l.loadStatus(ctx)
	if err != nil {
		return err
	}
	return l.consume(ctx, status, l.now())
}

// requiredWait computes how long the caller must hold off before sending
func (l *RateLimiter) requiredWait(status *sync.RateLimitStatus, now time.Time) time.Duration {
	if status.InBackoff(now) {
		return status.BackoffUntil.Sub(now)
	}
	if status.Remaining <= l.cfg.RemainingThreshold && now.Before(status.ResetTime) {
		return status.ResetTime.Sub(now)
	}
	if status.BurstCount >= l.cfg.BurstQuota {
		if burstEnd := status.BurstStart.Add(time.Minute); now.Before(burstEnd) {
			return burstEnd.Sub(now)
		}
	}
	return 0
}

// consume counts one request against the local windows and persists the
// shared status
func (l *RateLimiter) consume(ctx context.Context, status *sync.RateLimitStatus, now time.Time) error {
	if now.After(status.ResetTime) {
		status.WindowStart = now
		status.ResetTime = now.Add(time.Hour)
		status.Remaining = l.cfg.HourlyQuota
	}
	if now.Sub(status.BurstStart) >= time.Minute {
		status.BurstStart = now
		status.BurstCount = 0
	}

	status.Remaining--
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	status.BurstCount++
	status.AdaptiveMode = status.UsageRatio(l.cfg.HourlyQuota) >= l.cfg.AdaptiveRatio
	status.UpdatedAt = now

	return l.store.Set(ctx, status)
}

// RecordHeaders folds authoritative rate-limit response headers into the
// shared status. Absent headers leave the locally tracked values in place.
func (l *RateLimiter) RecordHeaders(ctx context.Context, remaining, reset string) {
	if remaining == "" && reset == "" {
		return
	}

	status, err := l.loadStatus(ctx)
	if err != nil {
		l.logger.Warn("failed to load rate limit status for header update", zap.Error(err))
		return
	}
	now := l.now()

	if remaining != "" {
		if v, err := strconv.Atoi(remaining); err == nil {
			status.Remaining = v
		}
	}
	if reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			status.ResetTime = time.Unix(epoch, 0)
		}
	}

	status.AdaptiveMode = status.UsageRatio(l.cfg.HourlyQuota) >= l.cfg.AdaptiveRatio
	status.UpdatedAt = now

	if err := l.store.Set(ctx, status); err != nil {
		l.logger.Warn("failed to persist rate limit status", zap.Error(err))
	}
}

// RecordBackoff records a 429-mandated backoff window:
// now + max(Retry-After, exponential(attempt) seconds)
func (l *RateLimiter) RecordBackoff(ctx context.Context, retryAfter time.Duration, attempt int) time.Duration {
	exponential := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	backoff := retryAfter
	if exponential > backoff {
		backoff = exponential
	}

	status, err := l.loadStatus(ctx)
	if err != nil {
		l.logger.Warn("failed to load rate limit status for backoff", zap.Error(err))
		return backoff
	}

	now := l.now()
	status.BackoffUntil = now.Add(backoff)
	status.UpdatedAt = now
	if err := l.store.Set(ctx, status); err != nil {
		l.logger.Warn("failed to persist rate limit backoff", zap.Error(err))
	}

	l.logger.Warn("rate limit backoff recorded",
		zap.Duration("backoff", backoff),
		zap.Int("attempt", attempt))
	return backoff
}

// Status returns the current shared status, initializing a fresh window when
// none is recorded
func (l *RateLimiter) Status(ctx context.Context) (*sync.RateLimitStatus, error) {
	return l.loadStatus(ctx)
}

func (l *RateLimiter) loadStatus(ctx context.Context) (*sync.RateLimitStatus, error) {
	status, err := l.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if status == nil {
		now := l.now()
		status = &sync.RateLimitStatus{
			Remaining:   l.cfg.HourlyQuota,
			WindowStart: now,
			ResetTime:   now.Add(time.Hour),
			BurstStart:  now,
			UpdatedAt:   now,
		}
	}
	return status, nil
}
