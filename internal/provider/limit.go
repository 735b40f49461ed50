package provider

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// RateLimited throttles Submit calls of the wrapped provider.
type RateLimited struct {
	Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps p with a limiter allowing perMinute calls per minute.
// A non-positive perMinute returns p unchanged.
func NewRateLimited(p Provider, perMinute int) Provider {
	if perMinute <= 0 {
		return p
	}
	return &RateLimited{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
	}
}

// Submit waits for a token and then delegates. A context that ends while
// waiting returns the context error.
func (r *RateLimited) Submit(ctx context.Context, systemPrompt, payload string) (*Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The wait would outlast the context deadline.
		return nil, eris.Wrap(context.DeadlineExceeded, "provider: rate limit wait")
	}
	return r.Provider.Submit(ctx, systemPrompt, payload)
}
