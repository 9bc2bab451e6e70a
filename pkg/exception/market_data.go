package exception

import "errors"

var (
	ErrProviderRequest     = errors.New("market data: provider request failed")
	ErrProviderStatus      = errors.New("market data: provider returned non-2xx status")
	ErrUnsupportedProvider = errors.New("market data: unsupported provider")
	ErrUnsupportedInterval = errors.New("market data: unsupported interval")
	ErrEmptySymbolList     = errors.New("market data: empty symbol list")
	ErrNilProvider         = errors.New("market data: nil provider")
	ErrInvalidTimestamp    = errors.New("market data: timestamp cannot be normalized")
)
