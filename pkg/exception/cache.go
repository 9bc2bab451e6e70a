package exception

import "errors"

var (
	ErrCacheNilClient  = errors.New("cache: nil client")
	ErrCacheConflict   = errors.New("cache: concurrent update, retries exhausted")
	ErrCacheBadWindow  = errors.New("cache: window size must be > 0")
	ErrCacheEmptyEntry = errors.New("cache: entry is empty")
)
