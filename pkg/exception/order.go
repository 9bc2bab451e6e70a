package exception

import "errors"

var (
	ErrTradeEmptyIdentity = errors.New("trade: empty strategy identity")
	ErrTradeNilTransport  = errors.New("trade: nil transport")
	ErrTradeClosed        = errors.New("trade: transport closed")
	ErrTradeTimeout       = errors.New("trade: reply timeout")
	ErrTradeUnavailable   = errors.New("trade: engine unreachable")
	ErrTradeEmptyReply    = errors.New("trade: empty reply")
	ErrTradeBadEnvelope   = errors.New("trade: malformed envelope")
)
