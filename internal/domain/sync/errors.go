package sync

import (
	"errors"
	"fmt"
	"time"
)

// Transport and reconciliation error taxonomy. Transient classes are retried
// by the transport up to its cap; terminal classes surface immediately.
var (
	// ErrNetwork indicates a connection-level failure (retryable)
	ErrNetwork = errors.New("wms: network error")
	// ErrAuth indicates the WMS rejected our credentials (terminal per call)
	ErrAuth = errors.New("wms: authentication failed")
	// ErrRateLimited indicates the request was refused or withheld because of
	// rate limiting (retryable with mandated wait)
	ErrRateLimited = errors.New("wms: rate limited")
	// ErrClient indicates a 4xx response other than 429 (not retryable)
	ErrClient = errors.New("wms: client error")
	// ErrServer indicates a 5xx response (retryable, bounded)
	ErrServer = errors.New("wms: server error")
	// ErrConfiguration indicates required sync configuration is missing
	ErrConfiguration = errors.New("wms: configuration error")
	// ErrReconciliation indicates a mid-coordinator failure while applying a
	// remote payload to a local order
	ErrReconciliation = errors.New("wms: reconciliation failed")
	// ErrOrderNotFound indicates no local order matches the external reference
	ErrOrderNotFound = errors.New("wms: order not found")
	// ErrProductNotFound indicates product resolution exhausted every strategy
	ErrProductNotFound = errors.New("wms: product not found")
)

// IsRetryable reports whether the transport may retry a request that failed
// with this error
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer) || errors.Is(err, ErrRateLimited)
}

// RateLimitWait is returned (wrapped in ErrRateLimited) when a computed
// rate-limit wait exceeds the configured maximum, so callers fail fast
// instead of blocking indefinitely.
type RateLimitWait struct {
	Wait time.Duration
	Max  time.Duration
}

func (e *RateLimitWait) Error() string {
	return fmt.Sprintf("required wait %s exceeds maximum %s", e.Wait, e.Max)
}
