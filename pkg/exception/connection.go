package exception

import "github.com/yanun0323/errors"

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnsupportedDriver   = errors.New("connection: unsupported database driver")
	ErrEmptyCacheURL       = errors.New("connection: empty cache url")
	ErrUnsupportedEndpoint = errors.New("connection: unsupported endpoint scheme")
)
