package natsserver

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// EventStream is the JetStream stream that retains editor events.
const EventStream = "EDBRIDGE_EVENTS"

// Config holds settings for the embedded NATS server.
type Config struct {
	StoreDir string
	Host     string
	Port     int
	Token    string // If non-empty, requires token auth for NATS connections.
	// EventSubjects are captured into EventStream when set.
	EventSubjects []string
	EventMaxAge   time.Duration
}

// Server wraps an embedded NATS server with JetStream.
type Server struct {
	ns     *server.Server
	nc     *nats.Conn
	js     jetstream.JetStream
	events jetstream.Stream
	logger zerolog.Logger
}

// New creates and starts the embedded NATS server.
func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	opts := &server.Options{
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		DontListen: cfg.Host == "",
		Host:       cfg.Host,
		Port:       cfg.Port,
		NoLog:      true,
		NoSigs:     true,
	}
	if cfg.Token != "" {
		opts.Authorization = cfg.Token
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("nats server create: %w", err)
	}

	ns.SetLoggerV2(newZerologAdapter(logger), false, false, false)

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		return nil, fmt.Errorf("nats server failed to become ready")
	}

	var connectOpts []nats.Option
	if opts.DontListen {
		connectOpts = append(connectOpts, nats.InProcessServer(ns))
	}
	if cfg.Token != "" {
		connectOpts = append(connectOpts, nats.Token(cfg.Token))
	}
	nc, err := nats.Connect(ns.ClientURL(), connectOpts...)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	s := &Server{ns: ns, nc: nc, js: js, logger: logger}
	if len(cfg.EventSubjects) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     EventStream,
			Subjects: cfg.EventSubjects,
			MaxAge:   cfg.EventMaxAge,
			Storage:  jetstream.FileStorage,
		})
		if err != nil {
			nc.Close()
			ns.Shutdown()
			return nil, fmt.Errorf("create event stream: %w", err)
		}
		s.events = stream
	}

	logger.Info().Str("client_url", ns.ClientURL()).Msg("embedded NATS started")
	return s, nil
}

// Conn returns the internal NATS client connection.
func (s *Server) Conn() *nats.Conn { return s.nc }

// JetStream returns the JetStream handle.
func (s *Server) JetStream() jetstream.JetStream { return s.js }

// NATSServer returns the raw server for InProcessServer connections.
func (s *Server) NATSServer() *server.Server { return s.ns }

// ClientURL returns the NATS client connection URL.
func (s *Server) ClientURL() string { return s.ns.ClientURL() }

// StoredEvents returns the number of messages retained in the event stream,
// or 0 when no stream is configured.
func (s *Server) StoredEvents(ctx context.Context) (uint64, error) {
	if s.events == nil {
		return 0, nil
	}
	info, err := s.events.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("event stream info: %w", err)
	}
	return info.State.Msgs, nil
}

// Shutdown gracefully drains and shuts down.
func (s *Server) Shutdown() {
	s.logger.Info().Msg("shutting down embedded NATS")
	s.nc.Drain()
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
