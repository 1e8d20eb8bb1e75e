package rate

import "errors"

var (
	// ErrRateLimited is returned when a login counter is over budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
