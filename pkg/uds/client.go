package uds

import (
	"context"
	"net"

	"marketgate/pkg/exception"
)

const unixNetwork = "unix"

// Client dials Unix domain sockets using a precomputed address.
type Client struct {
	addr   net.UnixAddr
	dialer net.Dialer
}

// NewClient creates a client for the provided socket path.
func NewClient(path string) (*Client, error) {
	if path == "" {
		return nil, exception.ErrEmptyPathUDS
	}
	return &Client{addr: net.UnixAddr{Name: path, Net: unixNetwork}}, nil
}

// Path returns the configured socket path.
func (c *Client) Path() string {
	if c == nil {
		return ""
	}
	return c.addr.Name
}

// Dial opens a Unix domain socket connection.
func (c *Client) Dial() (*net.UnixConn, error) {
	return c.DialContext(context.Background())
}

// DialContext opens a Unix domain socket connection bounded by ctx.
func (c *Client) DialContext(ctx context.Context) (*net.UnixConn, error) {
	if c == nil {
		return nil, exception.ErrNilClientUDS
	}
	if c.addr.Name == "" {
		return nil, exception.ErrEmptyPathUDS
	}
	conn, err := c.dialer.DialContext(ctx, unixNetwork, c.addr.Name)
	if err != nil {
		return nil, err
	}
	return conn.(*net.UnixConn), nil
}
