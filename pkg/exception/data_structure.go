package exception

import "github.com/yanun0323/errors"

var (
	ErrNilInstance     = errors.New("nil instance")
	ErrFrameTooLarge   = errors.New("frame exceeds max size")
	ErrMalformedRecord = errors.New("malformed record")
)
