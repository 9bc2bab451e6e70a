package exception

import "errors"

var (
	ErrStoreInvalidTable = errors.New("store: invalid table name")
	ErrStoreNilDB        = errors.New("store: nil database")
)
