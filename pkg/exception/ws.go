package exception

import "errors"

// Feed errors
var (
	ErrFeedConnectionClose = errors.New("feed: connection closed")
	ErrFeedProtocol        = errors.New("feed: protocol error")
	ErrFeedEmptySymbols    = errors.New("feed: empty symbol list")
	ErrFeedIdle            = errors.New("feed: no message within watchdog window")
)
