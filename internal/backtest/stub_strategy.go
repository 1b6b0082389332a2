package backtest

import (
	"context"

	"execution-lab/internal/domain"
)

// StubStrategy is a no-op strategy for testing.
// It collects bars for verification without generating signals.
type StubStrategy struct {
	bars []domain.Bar
}

// NewStubStrategy creates a new stub strategy.
func NewStubStrategy() *StubStrategy {
	return &StubStrategy{
		bars: make([]domain.Bar, 0),
	}
}

// OnBar collects bars for verification.
// Always returns nil signal (no action).
func (s *StubStrategy) OnBar(_ context.Context, bc *Context) (*Signal, error) {
	s.bars = append(s.bars, bc.Bar)
	return nil, nil
}

// Name returns the strategy identifier.
func (s *StubStrategy) Name() string {
	return "stub"
}

// Bars returns collected bars for test verification.
func (s *StubStrategy) Bars() []domain.Bar {
	return s.bars
}

// Ensure StubStrategy implements Strategy
var _ Strategy = (*StubStrategy)(nil)
