package critic

import "errors"

// Sentinel kinds for critic errors.
var (
	ErrInvalidRules = errors.New("invalid critic rules")
)
