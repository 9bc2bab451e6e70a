package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"marketgate/internal/config"
	"marketgate/internal/marketdata"
	"marketgate/internal/model"
	"marketgate/internal/obs"
	"marketgate/internal/trade"
	"marketgate/pkg/conn"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("strategy: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to YAML/JSON config (optional)")
	poll := flag.Duration("poll", 5*time.Second, "Candle poll interval")
	qty := flag.Int64("qty", 1, "Order quantity")
	flag.Parse()

	if *poll <= 0 {
		log.Fatalf("poll must be > 0")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	strategyID, symbol, err := cfg.Strategy()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		cancel()
	}()

	rdb, err := conn.NewRedis(ctx, cfg.CacheURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reader, err := marketdata.NewReader(rdb,
		marketdata.WithStaleAfter(cfg.StaleAfter),
		marketdata.WithCandleLag(cfg.CandleLag()),
		marketdata.WithTickWindow(cfg.TickWindow),
	)
	if err != nil {
		return err
	}

	transport, err := trade.NewTransport(cfg.TradeEndpoint, strategyID)
	if err != nil {
		return err
	}
	metrics := obs.NewMetrics()
	gateway, err := trade.NewGateway(strategyID, transport,
		trade.WithTimeout(cfg.ReplyTimeout),
		trade.WithMetrics(metrics),
	)
	if err != nil {
		_ = transport.Close()
		return err
	}
	defer gateway.Close()

	logs.Infof("strategy: %s trading %s via %s", strategyID, symbol, cfg.TradeEndpoint)

	ticker := time.NewTicker(*poll)
	defer ticker.Stop()

	var last model.Candle
	for {
		select {
		case <-ctx.Done():
			logs.Infof("strategy: stopped, trade outcomes: %v", metrics.Snapshot().TradeOutcomes)
			return nil
		case <-ticker.C:
		}

		res := reader.LastCandle(ctx, symbol)
		if !res.IsOK() {
			logs.Warnf("strategy: candle of %s unavailable, code: %s, message: %s", symbol, res.Code, res.MessageText())
			continue
		}
		c := res.Data
		if c.Timestamp.Equal(last.Timestamp) || c.Close == nil {
			continue
		}

		if last.Close != nil {
			var out model.TradeResult
			switch {
			case *c.Close > *last.Close:
				out = gateway.Buy(ctx, symbol, *qty, nil)
			case *c.Close < *last.Close:
				out = gateway.Sell(ctx, symbol, *qty, nil)
			}
			if out.Status != "" {
				if out.IsOK() {
					logs.Infof("strategy: order accepted: %s", out.Data)
				} else {
					logs.Warnf("strategy: order rejected, code: %s, message: %s", out.Code, out.MessageText())
				}
			}
		}
		last = c
	}
}
