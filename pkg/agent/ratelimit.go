package agent

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles calls to an inner provider.
type RateLimitedProvider struct {
	inner   LLMProvider
	limiter *rate.Limiter
}

// NewRateLimitedProvider allows requestsPerMinute calls per minute with a burst of one.
// A non-positive rate returns inner unchanged.
func NewRateLimitedProvider(inner LLMProvider, requestsPerMinute int) LLMProvider {
	if requestsPerMinute <= 0 {
		return inner
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
	}
}

// Provider returns the inner provider name
func (p *RateLimitedProvider) Provider() string {
	return p.inner.Provider()
}

// Call waits for a token and then delegates.
func (p *RateLimitedProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Call(ctx, request)
}
