package sync

import "time"

// Rate limiter tuning defaults. Local windows apply when the WMS omits
// rate-limit response headers.
const (
	DefaultHourlyQuota        = 1000
	DefaultBurstQuota         = 60
	DefaultRemainingThreshold = 5
	DefaultMaxWait            = 30 * time.Second
	DefaultAdaptiveRatio      = 0.8
)

// RateLimitStatus is the shared view of our remaining WMS quota. It is
// persisted so overlapping invocations see one another's consumption.
type RateLimitStatus struct {
	Remaining    int       `json:"remaining"`
	ResetTime    time.Time `json:"reset_time"`
	BackoffUntil time.Time `json:"backoff_until"`
	AdaptiveMode bool      `json:"adaptive_mode"`
	WindowStart  time.Time `json:"window_start"`
	BurstCount   int       `json:"burst_count"`
	BurstStart   time.Time `json:"burst_start"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InBackoff reports whether a recorded backoff window is still open
func (s *RateLimitStatus) InBackoff(now time.Time) bool {
	return now.Before(s.BackoffUntil)
}

// UsageRatio returns the fraction of the hourly quota consumed
func (s *RateLimitStatus) UsageRatio(quota int) float64 {
	if quota <= 0 {
		return 0
	}
	used := quota - s.Remaining
	if used < 0 {
		used = 0
	}
	return float64(used) / float64(quota)
}
