package replay

import (
	"fmt"

	"execution-lab/internal/domain"
)

// VerifyOrdering checks that bar timestamps strictly increase.
// The error wraps ErrInvalidOrdering and names the first offending index.
func VerifyOrdering(bars []*domain.Bar) error {
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp <= bars[i-1].Timestamp {
			return fmt.Errorf("%w: index %d at %d follows %d",
				ErrInvalidOrdering, i, bars[i].Timestamp, bars[i-1].Timestamp)
		}
	}
	return nil
}
