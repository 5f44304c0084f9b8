package api

import (
	"golang.org/x/time/rate"
)

// newLimiter spaces requests to requestsPerMinute, allowing a burst of a fifth of a minute's budget.
// A non-positive rate disables limiting.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := max(1, requestsPerMinute/5)
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}
