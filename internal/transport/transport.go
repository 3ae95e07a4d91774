// Package transport accepts editor commands over TCP, WebSocket and NATS and
// hands them to a single Executor.
package transport

import (
	"context"
	"time"

	"github.com/sekia-ai/edbridge/internal/bridge"
	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// DefaultCommandTimeout bounds how long a transport waits for a reply.
const DefaultCommandTimeout = 30 * time.Second

// Executor runs one request and returns the canonical envelope.
type Executor interface {
	ExecuteEnvelope(ctx context.Context, req protocol.Request) protocol.Envelope
}

var _ Executor = (*bridge.Bridge)(nil)

func missingType() protocol.Envelope {
	return protocol.ErrorEnvelope("Missing 'type' field in request")
}
