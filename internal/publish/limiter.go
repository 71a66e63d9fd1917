package publish

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is the single gate every remote call passes through, shared
// by all workers. A burst of one keeps admissions spaced a full interval
// apart, so any rolling one-second window sees at most perSecond calls no
// matter how many goroutines are waiting.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(perSecond int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until a slot is available or the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
