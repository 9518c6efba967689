package engagement

import "errors"

// Sentinel kinds for engagement errors.
var (
	ErrInvalidConfig = errors.New("invalid engagement config")
)
