package stats

import "errors"

// ErrUnknownSortKey is returned when a sort key is not recognized.
var ErrUnknownSortKey = errors.New("unknown sort key")
