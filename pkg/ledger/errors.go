package ledger

import "errors"

// Domain errors. Callers match them with errors.Is; the wrapped message
// carries the specific reason.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
)
