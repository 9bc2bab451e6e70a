package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yanun0323/logs"

	"marketgate/internal/cache"
	"marketgate/internal/model"
	"marketgate/internal/obs"
)

const (
	requestTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
	maxHistorySpan  = 7 * 24 * time.Hour
)

// Reader serves freshness-checked reads.
type Reader interface {
	LastCandle(ctx context.Context, symbol string) model.CandleResult
	LastPrices(ctx context.Context, symbol string) model.Result[[]string]
}

// WindowSource returns the cached candle window of a symbol.
type WindowSource interface {
	Window(ctx context.Context, symbol string) (cache.Entry, error)
}

// HistorySource returns persisted candles.
type HistorySource interface {
	Range(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error)
}

// API is the debug HTTP surface of the ingestion process.
type API struct {
	reader  Reader
	windows WindowSource
	history HistorySource
	metrics *obs.Metrics
	started time.Time
}

func New(reader Reader, windows WindowSource, history HistorySource, metrics *obs.Metrics) *API {
	return &API{
		reader:  reader,
		windows: windows,
		history: history,
		metrics: metrics,
		started: time.Now(),
	}
}

// Router builds the gin engine with all routes.
func (a *API) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(accessLog())

	router.GET("/health", a.health)
	router.GET("/metrics", a.snapshot)
	router.GET("/candles/:symbol", a.candles)
	router.GET("/history/:symbol", a.historyRange)
	router.GET("/prices/:symbol", a.prices)
	router.GET("/last/:symbol", a.last)

	return router
}

// Serve listens on addr until ctx is done.
func (a *API) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.Infof("http: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Writer.Status() >= http.StatusInternalServerError {
			logs.Errorf("http: %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		}
	}
}
