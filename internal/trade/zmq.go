package trade

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"marketgate/pkg/exception"
)

// ZMQ is a DEALER socket whose identity is the strategy id, so a ROUTER engine can
// address replies to this process.
type ZMQ struct {
	endpoint string
	identity string

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	sess   *zmqSession
	closed bool
}

type zmqReply struct {
	payload []byte
	err     error
}

type zmqSession struct {
	sock    zmq4.Socket
	dialed  chan struct{}
	dialErr error
	pumping bool
	replies chan zmqReply
	broken  atomic.Bool
}

func NewZMQ(endpoint, identity string) (*ZMQ, error) {
	if endpoint == "" {
		return nil, exception.ErrInvalidArgument
	}
	if identity == "" {
		return nil, exception.ErrTradeEmptyIdentity
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ZMQ{
		endpoint: endpoint,
		identity: identity,
		base:     ctx,
		cancel:   cancel,
	}, nil
}

func (z *ZMQ) RoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.closed {
		return nil, exception.ErrTradeClosed
	}

	s, err := z.session(ctx)
	if err != nil {
		return nil, err
	}

	// Replies that arrived after an earlier timeout belong to that request.
drain:
	for {
		select {
		case r := <-s.replies:
			if r.err == nil {
				logs.Warnf("trade: discard late reply for %s", z.identity)
			}
		default:
			break drain
		}
	}

	if err := s.sock.Send(zmq4.NewMsg(payload)); err != nil {
		z.reset()
		return nil, errors.Wrap(err, "send command")
	}

	select {
	case r := <-s.replies:
		if r.err != nil {
			z.reset()
			return nil, r.err
		}
		return r.payload, nil
	case <-ctx.Done():
		return nil, exception.ErrTradeTimeout
	}
}

// session returns a connected socket, dialing lazily. A dial still in progress when
// ctx expires is kept for the next call.
func (z *ZMQ) session(ctx context.Context) (*zmqSession, error) {
	if z.sess != nil && z.sess.broken.Load() {
		z.reset()
	}

	if z.sess == nil {
		s := &zmqSession{
			sock:    zmq4.NewDealer(z.base, zmq4.WithID(zmq4.SocketIdentity(z.identity))),
			dialed:  make(chan struct{}),
			replies: make(chan zmqReply, 4),
		}
		go func() {
			s.dialErr = s.sock.Dial(z.endpoint)
			close(s.dialed)
		}()
		z.sess = s
	}

	s := z.sess
	select {
	case <-s.dialed:
	case <-ctx.Done():
		return nil, exception.ErrTradeTimeout
	}

	if s.dialErr != nil {
		err := s.dialErr
		z.reset()
		return nil, errors.Wrapf(exception.ErrTradeUnavailable, "%s: %v", z.endpoint, err)
	}
	if !s.pumping {
		s.pumping = true
		go z.pump(s)
	}
	return s, nil
}

func (z *ZMQ) pump(s *zmqSession) {
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if z.base.Err() == nil && !s.broken.Load() {
				s.broken.Store(true)
				select {
				case s.replies <- zmqReply{err: errors.Wrap(err, "receive reply")}:
				default:
				}
			}
			return
		}
		if len(msg.Frames) == 0 {
			continue
		}
		// An engine may keep the REQ style empty delimiter; the payload is the last frame.
		select {
		case s.replies <- zmqReply{payload: msg.Frames[len(msg.Frames)-1]}:
		default:
			logs.Warnf("trade: reply buffer full for %s, drop reply", z.identity)
		}
	}
}

func (z *ZMQ) reset() {
	if z.sess == nil {
		return
	}
	s := z.sess
	z.sess = nil
	s.broken.Store(true)
	go func() {
		<-s.dialed
		_ = s.sock.Close()
	}()
}

func (z *ZMQ) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.closed {
		return nil
	}
	z.closed = true
	z.reset()
	z.cancel()
	return nil
}
