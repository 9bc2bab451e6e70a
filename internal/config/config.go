package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"marketgate/internal/engine"
	"marketgate/internal/ingest"
	"marketgate/internal/live"
	"marketgate/internal/model"
	"marketgate/pkg/conn"
	"marketgate/pkg/exception"
)

const envPrefix = "SIM"

// Provider names accepted by SIM_PROVIDER.
const (
	ProviderYahoo     = "yahoo"
	ProviderBinance   = "binance"
	ProviderSynthetic = "synthetic"
)

// Config is the flat process configuration. Every key maps to SIM_<KEY>.
type Config struct {
	TradeEndpoint  string        `mapstructure:"trade_endpoint"`
	CacheURL       string        `mapstructure:"cache_url"`
	StrategyID     string        `mapstructure:"strategy_id"`
	Symbol         string        `mapstructure:"symbol"`
	Symbols        []string      `mapstructure:"symbols"`
	SymbolsFile    string        `mapstructure:"symbols_file"`
	FetchInterval  time.Duration `mapstructure:"fetch_interval"`
	FetchSettle    time.Duration `mapstructure:"fetch_settle"`
	CandleInterval time.Duration `mapstructure:"candle_interval"`
	ReplyTimeout   time.Duration `mapstructure:"reply_timeout"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
	CandleWindow   int           `mapstructure:"candle_window"`
	TickWindow     int           `mapstructure:"tick_window"`
	DBDriver       string        `mapstructure:"db_driver"`
	DBDSN          string        `mapstructure:"db_dsn"`
	DBTable        string        `mapstructure:"db_table"`
	Provider       string        `mapstructure:"provider"`
	ProviderURL    string        `mapstructure:"provider_url"`
	FeedEnabled    bool          `mapstructure:"feed_enabled"`
	FeedURL        string        `mapstructure:"feed_url"`
	FeedSymbols    []string      `mapstructure:"feed_symbols"`
	HTTPAddr       string        `mapstructure:"http_addr"`
	PyroscopeAddr  string        `mapstructure:"pyroscope_addr"`

	Risk engine.RiskConfig `mapstructure:"risk"`
}

var defaults = map[string]any{
	"trade_endpoint":               "tcp://127.0.0.1:5555",
	"cache_url":                    "redis://127.0.0.1:6379/0",
	"strategy_id":                  "",
	"symbol":                       "",
	"symbols":                      []string{},
	"symbols_file":                 "stocklist.json",
	"fetch_interval":               60 * time.Second,
	"fetch_settle":                 ingest.DefaultSettle,
	"candle_interval":              time.Minute,
	"reply_timeout":                2000 * time.Millisecond,
	"stale_after":                  60 * time.Second,
	"candle_window":                5,
	"tick_window":                  10,
	"db_driver":                    string(conn.DriverPostgres),
	"db_dsn":                       "postgres://postgres@localhost:5432/marketgate?sslmode=disable",
	"db_table":                     "candles",
	"provider":                     ProviderYahoo,
	"provider_url":                 "",
	"feed_enabled":                 true,
	"feed_url":                     live.DefaultURL,
	"feed_symbols":                 []string{},
	"http_addr":                    ":8080",
	"pyroscope_addr":               "",
	"risk.kill_switch":             false,
	"risk.max_order_qty":           0,
	"risk.max_order_notional":      0.0,
	"risk.max_position":            0,
	"risk.order_rate_limit":        0,
	"risk.order_rate_window":       time.Duration(0),
	"risk.max_price_deviation_bps": 0,
}

// Load reads an optional .env file, the environment and an optional config file at
// path, then validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logs.Warnf("config: read .env, err: %+v", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range defaults {
		if err := v.BindEnv(key); err != nil {
			return Config{}, errors.Wrapf(exception.ErrInvalidConfig, "bind %s: %v", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(exception.ErrInvalidConfig, "read %s: %v", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrapf(exception.ErrInvalidConfig, "%v", err)
	}
	cfg.Symbols = splitList(cfg.Symbols)
	cfg.FeedSymbols = splitList(cfg.FeedSymbols)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.FetchInterval <= 0:
		return invalid("fetch_interval must be positive")
	case c.FetchSettle < 0:
		return invalid("fetch_settle must not be negative")
	case c.CandleInterval <= 0:
		return invalid("candle_interval must be positive")
	case c.ReplyTimeout <= 0:
		return invalid("reply_timeout must be positive")
	case c.StaleAfter <= 0:
		return invalid("stale_after must be positive")
	case c.CandleWindow <= 0:
		return invalid("candle_window must be positive")
	case c.TickWindow <= 0:
		return invalid("tick_window must be positive")
	}

	switch c.Provider {
	case ProviderYahoo, ProviderBinance, ProviderSynthetic:
	default:
		return errors.Wrapf(exception.ErrUnsupportedProvider, "%q", c.Provider)
	}

	switch conn.Driver(strings.ToLower(c.DBDriver)) {
	case conn.DriverPostgres, conn.DriverSQLite:
	default:
		return errors.Wrapf(exception.ErrUnsupportedDriver, "%q", c.DBDriver)
	}
	return nil
}

// Strategy returns the identity and symbol of a strategy process.
func (c Config) Strategy() (strategyID, symbol string, err error) {
	if c.StrategyID == "" {
		return "", "", errors.Wrapf(exception.ErrMissingConfig, "SIM_STRATEGY_ID")
	}
	if c.Symbol == "" {
		return "", "", errors.Wrapf(exception.ErrMissingConfig, "SIM_SYMBOL")
	}
	if !model.ValidSymbol(c.Symbol) {
		return "", "", invalid(fmt.Sprintf("symbol %q", c.Symbol))
	}
	return c.StrategyID, c.Symbol, nil
}

// DBOption builds the durable store connection option.
func (c Config) DBOption() conn.Option {
	return conn.Option{
		Driver:     conn.Driver(strings.ToLower(c.DBDriver)),
		ConnString: c.DBDSN,
	}
}

// ResolveSymbols returns SIM_SYMBOLS when set, otherwise the list in SymbolsFile.
func (c Config) ResolveSymbols() ([]string, error) {
	if len(c.Symbols) != 0 {
		return checkSymbols(c.Symbols)
	}
	return LoadSymbols(c.SymbolsFile)
}

// CandleLag is how long after its open time a candle reaches the cache: one candle
// interval until it closes plus the settle offset of the fetch cycle.
func (c Config) CandleLag() time.Duration {
	return c.CandleInterval + c.FetchSettle
}

// ResolveFeedSymbols returns the symbols of the live tick feed: SIM_FEED_SYMBOLS when
// set, otherwise the ingestion symbols. It returns nil when the feed is disabled.
func (c Config) ResolveFeedSymbols(ingestion []string) ([]string, error) {
	if !c.FeedEnabled || c.FeedURL == "" {
		return nil, nil
	}
	if len(c.FeedSymbols) != 0 {
		return checkSymbols(c.FeedSymbols)
	}
	return checkSymbols(ingestion)
}

// LoadSymbols reads a JSON array of symbol strings.
func LoadSymbols(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(exception.ErrInvalidSymbols, "%v", err)
	}

	var raw []any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(exception.ErrInvalidSymbols, "%s is not a JSON array: %v", path, err)
	}

	symbols := make([]string, 0, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, errors.Wrapf(exception.ErrInvalidSymbols, "entry %d is %T", i, item)
		}
		symbols = append(symbols, s)
	}
	return checkSymbols(symbols)
}

func checkSymbols(symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, exception.ErrEmptySymbolList
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for i, s := range symbols {
		if !model.ValidSymbol(s) {
			return nil, errors.Wrapf(exception.ErrInvalidSymbols, "entry %d is %q", i, s)
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// splitList accepts both a list and a single comma separated entry.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func invalid(msg string) error {
	return errors.Wrapf(exception.ErrInvalidConfig, "%s", msg)
}
