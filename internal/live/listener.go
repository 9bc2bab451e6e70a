package live

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"marketgate/internal/bus"
	"marketgate/internal/obs"
	"marketgate/pkg/exception"
)

const (
	DefaultURL          = "wss://stream.binance.com:9443/ws"
	DefaultReadTimeout  = 60 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultPingInterval = 20 * time.Second
	DefaultQueueSize    = 1024

	readLimit = 1 << 20
)

// TickSink stores ticks, usually the prices:{symbol} window.
type TickSink interface {
	Push(ctx context.Context, symbol, price string) error
}

type Config struct {
	URL     string
	Symbols []string

	// ReadTimeout is the watchdog window; a silent feed is reconnected after it.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	QueueSize    int
	Backoff      Backoff
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Backoff == (Backoff{}) {
		c.Backoff = DefaultBackoff()
	}
	return c
}

// Listener keeps one subscribed feed connection and writes every tick into the sink.
// The connection is re-dialed and re-subscribed after any failure until ctx is done.
type Listener struct {
	cfg     Config
	sink    TickSink
	codec   Codec
	dialer  *websocket.Dialer
	metrics *obs.Metrics

	subID atomic.Uint64
}

type Option func(*Listener)

func WithCodec(c Codec) Option {
	return func(l *Listener) {
		if c != nil {
			l.codec = c
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(l *Listener) {
		if d != nil {
			l.dialer = d
		}
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

func NewListener(cfg Config, sink TickSink, opts ...Option) (*Listener, error) {
	if sink == nil {
		return nil, exception.ErrNilInstance
	}
	if len(cfg.Symbols) == 0 {
		return nil, exception.ErrFeedEmptySymbols
	}

	l := &Listener{
		cfg:    cfg.withDefaults(),
		sink:   sink,
		codec:  BinanceCodec{},
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run blocks until ctx is done. On return the hand-off queue is drained and the sink is
// closed when it implements io.Closer.
func (l *Listener) Run(ctx context.Context) error {
	queue := bus.NewQueue[Tick](l.cfg.QueueSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		drainCtx := context.WithoutCancel(ctx)
		queue.Run(drainCtx, func(t Tick) {
			err := l.sink.Push(drainCtx, t.Symbol, t.Price)
			l.metrics.IncTick(err)
			if err != nil {
				logs.Errorf("live: push %s tick, err: %+v", t.Symbol, err)
			}
		})
	}()

	defer func() {
		queue.Close()
		wg.Wait()
		if c, ok := l.sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logs.Errorf("live: close sink, err: %+v", err)
			}
		}
		logs.Info("live: listener stopped")
	}()

	attempt := 0
	for {
		received, err := l.session(ctx, queue)
		if ctx.Err() != nil {
			return nil
		}
		if received > 0 {
			attempt = 0
		}
		attempt++
		l.metrics.IncReconnect()

		wait := l.cfg.Backoff.Delay(attempt)
		logs.Warnf("live: feed session ended after %d ticks, redial %d in %s, err: %+v", received, attempt, wait, err)
		if !sleep(ctx, wait) {
			return nil
		}
	}
}

// session dials, subscribes and reads until the connection fails or ctx is done.
func (l *Listener) session(ctx context.Context, queue *bus.Queue[Tick]) (int, error) {
	conn, _, err := l.dialer.DialContext(ctx, l.cfg.URL, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "dial %s", l.cfg.URL)
	}

	done := make(chan struct{})
	var once sync.Once
	closeConn := func() {
		once.Do(func() {
			close(done)
			_ = conn.Close()
		})
	}
	defer closeConn()

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			closeConn()
		case <-done:
		}
	}()

	payload, err := l.codec.Subscribe(l.cfg.Symbols, l.subID.Add(1))
	if err != nil {
		return 0, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return 0, errors.Wrap(err, "write subscribe payload")
	}
	logs.Infof("live: subscribed %d symbols on %s", len(l.cfg.Symbols), l.cfg.URL)

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
	})

	go l.ping(conn, done)

	received := 0
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				return received, exception.ErrFeedIdle
			}
			return received, errors.Wrap(exception.ErrFeedConnectionClose, err.Error())
		}
		_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))

		tick, ok, err := l.codec.Decode(msg)
		if err != nil {
			logs.Warnf("live: skip message, err: %+v", err)
			continue
		}
		if !ok {
			continue
		}

		received++
		if err := queue.TryPublish(tick); err != nil {
			l.metrics.IncTickDrop()
		}
	}
}

func (l *Listener) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(l.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}
