// Package client sends editor commands to a running edbridged.
package client

import (
	"context"

	"github.com/sekia-ai/edbridge/internal/snippets"
	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// Client sends one command and returns the canonical envelope. Transport
// failures are returned as errors; command failures come back as error
// envelopes.
type Client interface {
	Send(ctx context.Context, command string, params map[string]any) (protocol.Envelope, error)
	Close() error
}

var (
	_ snippets.Sender = (*TCPClient)(nil)
	_ snippets.Sender = (*NATSClient)(nil)
)
