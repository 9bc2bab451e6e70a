package trade

import (
	"context"
	"strings"

	"github.com/yanun0323/errors"

	"marketgate/pkg/exception"
)

// Transport carries one request and its reply to the execution engine. A transport
// serves one strategy identity and handles one request at a time.
type Transport interface {
	// RoundTrip returns exception.ErrTradeTimeout when ctx expires before the reply.
	RoundTrip(ctx context.Context, payload []byte) ([]byte, error)
	Close() error
}

const unixScheme = "unix://"

// NewTransport picks the transport for endpoint: unix://<path> selects the unix socket
// transport, any other zmq endpoint (tcp://, ipc://) the DEALER socket.
func NewTransport(endpoint, identity string) (Transport, error) {
	switch {
	case strings.HasPrefix(endpoint, unixScheme):
		return NewUDS(strings.TrimPrefix(endpoint, unixScheme), identity)
	case strings.HasPrefix(endpoint, "tcp://"), strings.HasPrefix(endpoint, "ipc://"):
		return NewZMQ(endpoint, identity)
	default:
		return nil, errors.Wrapf(exception.ErrUnsupportedEndpoint, "%q", endpoint)
	}
}
