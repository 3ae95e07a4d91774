package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// NATSQueueGroup lets several edbridged processes share edbridge.commands.
const NATSQueueGroup = "edbridge"

// NATSResponder answers signed protocol.Command requests on edbridge.commands.
type NATSResponder struct {
	nc      *nats.Conn
	exec    Executor
	secret  string
	timeout time.Duration
	logger  zerolog.Logger
	sub     *nats.Subscription
}

// NewNATSResponder creates a responder. An empty secret accepts unsigned commands.
func NewNATSResponder(nc *nats.Conn, exec Executor, secret string, timeout time.Duration, logger zerolog.Logger) *NATSResponder {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &NATSResponder{
		nc:      nc,
		exec:    exec,
		secret:  secret,
		timeout: timeout,
		logger:  logger.With().Str("component", "nats-transport").Logger(),
	}
}

// Start subscribes to the command subject.
func (r *NATSResponder) Start() error {
	sub, err := r.nc.QueueSubscribe(protocol.SubjectCommands, NATSQueueGroup, r.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", protocol.SubjectCommands, err)
	}
	r.sub = sub
	r.logger.Info().Str("subject", protocol.SubjectCommands).Msg("NATS transport subscribed")
	return r.nc.Flush()
}

// Stop unsubscribes and lets in-flight handlers finish.
func (r *NATSResponder) Stop() {
	if r.sub != nil {
		r.sub.Drain()
	}
}

func (r *NATSResponder) handle(msg *nats.Msg) {
	env := r.execute(msg.Data)
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		r.logger.Error().Err(err).Msg("marshal reply")
		return
	}
	if err := msg.Respond(data); err != nil {
		r.logger.Warn().Err(err).Msg("respond")
	}
}

func (r *NATSResponder) execute(data []byte) protocol.Envelope {
	var cmd protocol.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		r.logger.Warn().Err(err).Msg("unmarshal command")
		return protocol.ErrorEnvelope("Invalid JSON request: " + err.Error())
	}
	if !protocol.VerifyCommand(&cmd, r.secret) {
		r.logger.Warn().
			Str("command", cmd.Command).
			Str("source", cmd.Source).
			Msg("rejected command with invalid signature")
		return protocol.ErrorEnvelope("Invalid command signature")
	}
	if cmd.Command == "" {
		return protocol.ErrorEnvelope("Missing 'command' field in request")
	}

	r.logger.Debug().Str("command", cmd.Command).Str("source", cmd.Source).Msg("received command")
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.exec.ExecuteEnvelope(ctx, protocol.Request{Type: cmd.Command, Params: cmd.Params})
}
