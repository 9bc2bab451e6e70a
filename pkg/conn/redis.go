package conn

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"

	"marketgate/pkg/exception"
)

// NewRedis opens a client for a redis:// url and verifies it with PING.
func NewRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	if rawURL == "" {
		return nil, exception.ErrEmptyCacheURL
	}
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse cache url")
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = 5 * time.Second
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = 3 * time.Second
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = 3 * time.Second
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping cache at %s", opt.Addr)
	}

	return client, nil
}
