package exception

import "errors"

// General errors
var (
	ErrMissingConfig  = errors.New("config: required value missing")
	ErrInvalidConfig  = errors.New("config: invalid value")
	ErrInvalidSymbols = errors.New("config: symbol list must contain non-empty strings")
)
