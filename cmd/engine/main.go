package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"marketgate/internal/config"
	"marketgate/internal/engine"
	"marketgate/internal/marketdata"
	"marketgate/pkg/conn"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("engine: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to YAML/JSON config (optional)")
	endpoint := flag.String("endpoint", "", "Listen endpoint, overrides SIM_TRADE_ENDPOINT")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *endpoint != "" {
		cfg.TradeEndpoint = *endpoint
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		cancel()
	}()

	var opts []engine.Option
	rdb, err := conn.NewRedis(ctx, cfg.CacheURL)
	if err != nil {
		logs.Warnf("engine: cache unavailable, market orders are rejected, err: %+v", err)
	} else {
		defer rdb.Close()
		reader, err := marketdata.NewReader(rdb,
			marketdata.WithStaleAfter(cfg.StaleAfter),
			marketdata.WithCandleLag(cfg.CandleLag()),
		)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithPriceSource(reader))
	}

	e := engine.New(cfg.Risk, opts...)
	defer func() {
		for _, p := range e.Positions().Snapshot() {
			logs.Infof("engine: final position %s %s: %d", p.StrategyID, p.Symbol, p.Qty)
		}
	}()

	if path, ok := strings.CutPrefix(cfg.TradeEndpoint, "unix://"); ok {
		return e.ServeUDS(ctx, path)
	}
	return e.ServeZMQ(ctx, cfg.TradeEndpoint)
}
