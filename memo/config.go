package memo

import (
	"sync/atomic"
	"time"
)

// NoExpiration disables automatic expiry when used as a timeout.
const NoExpiration time.Duration = -1

// InitialDefaultTimeout is the process-wide default before any call to
// SetDefaultTimeout.
const InitialDefaultTimeout = 2 * time.Hour

var defaultTimeout atomic.Int64

func init() { defaultTimeout.Store(int64(InitialDefaultTimeout)) }

// DefaultTimeout returns the process-wide timeout used by memos created
// without an explicit one.
func DefaultTimeout() time.Duration {
	return time.Duration(defaultTimeout.Load())
}

// SetDefaultTimeout replaces the process-wide default and returns the
// previous value. Zero or NoExpiration means entries never expire.
// Existing memos keep the timeout they resolved at creation.
func SetDefaultTimeout(d time.Duration) time.Duration {
	return time.Duration(defaultTimeout.Swap(int64(d)))
}

// resolveTimeout picks the effective timeout; the result is either
// positive or NoExpiration.
func resolveTimeout(timeout, fallback time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	if fallback == 0 {
		fallback = DefaultTimeout()
	}
	if fallback <= 0 {
		return NoExpiration
	}
	return fallback
}
