package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"marketgate/internal/cache"
	"marketgate/internal/config"
	"marketgate/internal/httpapi"
	"marketgate/internal/ingest"
	"marketgate/internal/live"
	"marketgate/internal/marketdata"
	"marketgate/internal/obs"
	"marketgate/internal/provider"
	"marketgate/internal/provider/binance"
	"marketgate/internal/provider/synthetic"
	"marketgate/internal/provider/yahoo"
	"marketgate/internal/store"
	"marketgate/pkg/conn"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("ingest: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to YAML/JSON config (optional)")
	once := flag.Bool("once", false, "Run a single ingestion cycle and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	symbols, err := cfg.ResolveSymbols()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		logs.Info("ingest: shutdown requested")
		cancel()
	}()

	stopProfiler, err := obs.StartProfiler("marketgate.ingest", cfg.PyroscopeAddr, map[string]string{"provider": cfg.Provider})
	if err != nil {
		return err
	}
	defer stopProfiler()

	db, err := conn.New(cfg.DBOption())
	if err != nil {
		return err
	}
	defer db.Close()

	candles, err := store.New(ctx, db.DB(), cfg.DBTable)
	if err != nil {
		return err
	}

	rdb, err := conn.NewRedis(ctx, cfg.CacheURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	window, err := cache.NewRollingWriter(rdb, cfg.CandleWindow)
	if err != nil {
		return err
	}

	metrics := obs.NewMetrics()
	scheduler, err := ingest.NewScheduler(newProvider(cfg), candles, window, symbols,
		ingest.WithMetrics(metrics),
		ingest.WithPeriod(cfg.FetchInterval),
		ingest.WithSettle(cfg.FetchSettle),
		ingest.WithInterval(cfg.CandleInterval),
	)
	if err != nil {
		return err
	}

	if *once {
		report, err := scheduler.RunCycle(ctx)
		if err != nil {
			return err
		}
		logs.Infof("ingest: cycle %s done, fetched: %d, failed: %d, inserted: %d, applied: %d",
			report.Trace, report.Fetched, report.Failed, report.Inserted, report.Applied)
		return nil
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = scheduler.Run(ctx)
	}()

	if err := startListener(ctx, &wg, cfg, symbols, metrics); err != nil {
		return err
	}

	if cfg.HTTPAddr != "" {
		reader, err := marketdata.NewReader(rdb,
			marketdata.WithStaleAfter(cfg.StaleAfter),
			marketdata.WithCandleLag(cfg.CandleLag()),
			marketdata.WithTickWindow(cfg.TickWindow),
		)
		if err != nil {
			return err
		}
		api := httpapi.New(reader, window, candles, metrics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.Serve(ctx, cfg.HTTPAddr); err != nil {
				logs.Errorf("ingest: http server, err: %+v", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	return nil
}

func newProvider(cfg config.Config) provider.Provider {
	client := &http.Client{Timeout: 15 * time.Second}
	switch cfg.Provider {
	case config.ProviderBinance:
		return binance.New(client, cfg.ProviderURL)
	case config.ProviderSynthetic:
		return synthetic.NewGenerator(100, 1000, 0.5)
	default:
		return yahoo.New(client, cfg.ProviderURL)
	}
}

// startListener runs the live tick feed unless SIM_FEED_ENABLED is false. The listener
// owns its own cache client and closes it on exit.
func startListener(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, ingestion []string, metrics *obs.Metrics) error {
	symbols, err := cfg.ResolveFeedSymbols(ingestion)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		logs.Info("ingest: live tick feed disabled")
		return nil
	}

	opt, err := redis.ParseURL(cfg.CacheURL)
	if err != nil {
		return err
	}
	ticks, err := cache.NewTickWindow(redis.NewClient(opt), cfg.TickWindow)
	if err != nil {
		return err
	}

	listener, err := live.NewListener(live.Config{URL: cfg.FeedURL, Symbols: symbols}, ticks, live.WithMetrics(metrics))
	if err != nil {
		_ = ticks.Close()
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Run(ctx); err != nil {
			logs.Errorf("ingest: live listener, err: %+v", err)
		}
	}()
	return nil
}
