package replay

import "errors"

// ErrInvalidOrdering is returned when bars are not in strictly increasing time order.
var ErrInvalidOrdering = errors.New("bars are not in strictly increasing time order")
