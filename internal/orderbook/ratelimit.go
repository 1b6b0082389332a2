package orderbook

import (
	"context"

	"golang.org/x/time/rate"

	"execution-lab/internal/domain"
)

// RateLimitedLoader throttles fetches against a remote snapshot store.
type RateLimitedLoader struct {
	next    Loader
	limiter *rate.Limiter
}

// NewRateLimitedLoader wraps next with a token bucket of perSecond fetches
// and the given burst. perSecond <= 0 disables throttling.
func NewRateLimitedLoader(next Loader, perSecond float64, burst int) *RateLimitedLoader {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedLoader{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// GetByTimeRange waits for a token, then delegates.
func (l *RateLimitedLoader) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.OrderBookSnapshot, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.GetByTimeRange(ctx, symbol, start, end)
}

var _ Loader = (*RateLimitedLoader)(nil)
