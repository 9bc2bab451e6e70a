package trade

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"marketgate/pkg/exception"
	"marketgate/pkg/uds"
)

// Hello is the first frame on a unix socket connection and names the strategy.
type Hello struct {
	Identity string `json:"identity"`
}

// UDS sends commands over a unix socket using length-prefixed JSON frames.
type UDS struct {
	client   *uds.Client
	identity string

	mu     sync.Mutex
	conn   *net.UnixConn
	closed bool
}

func NewUDS(path, identity string) (*UDS, error) {
	if identity == "" {
		return nil, exception.ErrTradeEmptyIdentity
	}
	client, err := uds.NewClient(path)
	if err != nil {
		return nil, err
	}
	return &UDS{client: client, identity: identity}, nil
}

func (u *UDS) RoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil, exception.ErrTradeClosed
	}

	conn, err := u.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = conn.SetDeadline(deadline)

	if err := uds.WriteFrame(conn, payload); err != nil {
		u.drop()
		return nil, mapConnErr(err)
	}
	reply, err := uds.ReadFrame(conn)
	if err != nil {
		u.drop()
		return nil, mapConnErr(err)
	}
	return reply, nil
}

func (u *UDS) connect(ctx context.Context) (*net.UnixConn, error) {
	if u.conn != nil {
		return u.conn, nil
	}

	conn, err := u.client.DialContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, exception.ErrTradeTimeout
		}
		return nil, errors.Wrapf(exception.ErrTradeUnavailable, "%s: %v", u.client.Path(), err)
	}

	hello, err := sonic.Marshal(Hello{Identity: u.identity})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if err := uds.WriteFrame(conn, hello); err != nil {
		_ = conn.Close()
		return nil, mapConnErr(err)
	}

	u.conn = conn
	return conn, nil
}

func (u *UDS) drop() {
	if u.conn != nil {
		_ = u.conn.Close()
		u.conn = nil
	}
}

func (u *UDS) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.drop()
	return nil
}

func mapConnErr(err error) error {
	if os.IsTimeout(err) {
		return exception.ErrTradeTimeout
	}
	return err
}
