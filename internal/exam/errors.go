package exam

import "errors"

// Engine errors. Callers match them with errors.Is; the engine wraps them
// with the offending value for context.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
)
