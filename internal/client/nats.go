package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// NATSConfig holds connection options for a NATSClient.
type NATSConfig struct {
	URL      string
	Token    string
	Secret   string // HMAC secret for signing commands; empty sends unsigned.
	Source   string
	Timeout  time.Duration
	NATSOpts []nats.Option
}

// NATSClient sends signed protocol.Command requests on edbridge.commands.
type NATSClient struct {
	nc      *nats.Conn
	secret  string
	source  string
	timeout time.Duration
}

// NewNATSClient connects with infinite reconnects and logs state changes.
func NewNATSClient(cfg NATSConfig, logger zerolog.Logger) (*NATSClient, error) {
	log := logger.With().Str("component", "nats-client").Logger()
	opts := []nats.Option{
		nats.Name("edbridge-client"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	opts = append(opts, cfg.NATSOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewNATSClientConn(nc, cfg), nil
}

// NewNATSClientConn wraps an existing connection. Close closes nc.
func NewNATSClientConn(nc *nats.Conn, cfg NATSConfig) *NATSClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Source == "" {
		cfg.Source = "client"
	}
	return &NATSClient{nc: nc, secret: cfg.Secret, source: cfg.Source, timeout: cfg.Timeout}
}

// Send signs the command and waits for the reply envelope.
func (c *NATSClient) Send(ctx context.Context, command string, params map[string]any) (protocol.Envelope, error) {
	if params == nil {
		params = map[string]any{}
	}
	cmd := protocol.Command{Command: command, Params: params, Source: c.source}
	if err := protocol.SignCommand(&cmd, c.secret); err != nil {
		return protocol.Envelope{}, fmt.Errorf("sign command: %w", err)
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("marshal command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	msg, err := c.nc.RequestWithContext(ctx, protocol.SubjectCommands, data)
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("request %s: %w", command, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(msg.Data, &raw); err != nil {
		return protocol.Envelope{}, fmt.Errorf("decode reply to %s: %w", command, err)
	}
	return protocol.Canonicalize(raw), nil
}

// Close drains the connection.
func (c *NATSClient) Close() error {
	return c.nc.Drain()
}
