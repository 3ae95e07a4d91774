package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// DefaultTimeout bounds one TCP round trip.
const DefaultTimeout = 30 * time.Second

// TCPClient opens a new connection per command because the server closes
// the connection after each reply.
type TCPClient struct {
	Addr    string
	Timeout time.Duration
}

// NewTCPClient returns a client for addr. A zero timeout uses DefaultTimeout.
func NewTCPClient(addr string, timeout time.Duration) *TCPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TCPClient{Addr: addr, Timeout: timeout}
}

// Send writes {type, params} and decodes the single reply object.
func (c *TCPClient) Send(ctx context.Context, command string, params map[string]any) (protocol.Envelope, error) {
	if params == nil {
		params = map[string]any{}
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("connect to editor at %s: %w", c.Addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(protocol.Request{Type: command, Params: params}); err != nil {
		return protocol.Envelope{}, fmt.Errorf("send %s: %w", command, err)
	}

	var raw map[string]any
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		return protocol.Envelope{}, fmt.Errorf("read reply to %s: %w", command, err)
	}
	return protocol.Canonicalize(raw), nil
}

// Close is a no-op; connections are not reused.
func (c *TCPClient) Close() error { return nil }
