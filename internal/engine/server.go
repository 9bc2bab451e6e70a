package engine

import (
	"context"
	"net"

	"github.com/bytedance/sonic"
	"github.com/go-zeromq/zmq4"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"marketgate/internal/trade"
	"marketgate/pkg/uds"
)

// ServeZMQ binds a ROUTER socket on endpoint and answers every DEALER by its identity
// until ctx is done.
func (e *Engine) ServeZMQ(ctx context.Context, endpoint string) error {
	router := zmq4.NewRouter(ctx, zmq4.WithID(zmq4.SocketIdentity("engine")))
	stop := context.AfterFunc(ctx, func() { _ = router.Close() })
	defer stop()

	if err := router.Listen(endpoint); err != nil {
		_ = router.Close()
		return errors.Wrapf(err, "listen %s", endpoint)
	}
	logs.Infof("engine: router listening on %s", endpoint)

	for {
		msg, err := router.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			_ = router.Close()
			return errors.Wrap(err, "receive command")
		}
		if len(msg.Frames) < 2 {
			continue
		}

		identity := msg.Frames[0]
		reply := e.Handle(ctx, string(identity), msg.Frames[len(msg.Frames)-1])
		if err := router.Send(zmq4.NewMsgFrom(identity, reply)); err != nil {
			logs.Errorf("engine: reply to %s, err: %+v", identity, err)
		}
	}
}

// ServeUDS answers framed commands on a unix socket until ctx is done. Each connection
// starts with a hello frame carrying the strategy identity.
func (e *Engine) ServeUDS(ctx context.Context, path string) error {
	server, err := uds.NewServer(path)
	if err != nil {
		return err
	}
	if err := server.Listen(); err != nil {
		return errors.Wrapf(err, "listen %s", path)
	}
	logs.Infof("engine: unix socket listening on %s", path)

	if err := server.Serve(ctx, e.serveConn); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "accept")
	}
	return nil
}

func (e *Engine) serveConn(ctx context.Context, conn *net.UnixConn) {
	frame, err := uds.ReadFrame(conn)
	if err != nil {
		return
	}
	var hello trade.Hello
	if err := sonic.Unmarshal(frame, &hello); err != nil || hello.Identity == "" {
		logs.Warnf("engine: drop unix connection without identity")
		return
	}

	for {
		payload, err := uds.ReadFrame(conn)
		if err != nil {
			return
		}
		if err := uds.WriteFrame(conn, e.Handle(ctx, hello.Identity, payload)); err != nil {
			logs.Errorf("engine: reply to %s, err: %+v", hello.Identity, err)
			return
		}
	}
}
