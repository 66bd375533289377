package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks callers until the request budget allows another request
type Limiter interface {
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
}

// New returns a limiter spreading perMinute requests evenly over a minute,
// or an unlimited one when perMinute is zero
func New(perMinute int) Limiter {
	if perMinute <= 0 {
		return Unlimited{}
	}
	return NewPerPeriod(perMinute, time.Minute)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// PerPeriod allows n requests per period with a burst of n
type PerPeriod struct {
	limiter *rate.Limiter
}

// NewPerPeriod creates a limiter for n requests per period
func NewPerPeriod(n int, period time.Duration) *PerPeriod {
	return &PerPeriod{
		limiter: rate.NewLimiter(rate.Every(period/time.Duration(n)), n),
	}
}

// Wait blocks until a token is available
func (p *PerPeriod) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
