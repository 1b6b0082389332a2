package replay

import (
	"context"

	"execution-lab/internal/domain"
)

// BarHandler processes bars in replay order.
type BarHandler interface {
	// OnBar is called for each bar in stored order. Returning an error aborts the replay.
	OnBar(ctx context.Context, bar *domain.Bar) error
}

// EndHandler is implemented by handlers that need to act once the stream is exhausted.
type EndHandler interface {
	OnEnd(ctx context.Context) error
}
