package cache

const (
	candlePrefix = "candles:"
	pricePrefix  = "prices:"
)

const (
	// DefaultCandleWindow is K, the number of candles kept per symbol.
	DefaultCandleWindow = 5
	// DefaultTickWindow is the number of raw prices kept per symbol.
	DefaultTickWindow = 10
)

// CandleKey returns the rolling window key for symbol.
func CandleKey(symbol string) string {
	return candlePrefix + symbol
}

// PriceKey returns the live tick window key for symbol.
func PriceKey(symbol string) string {
	return pricePrefix + symbol
}
