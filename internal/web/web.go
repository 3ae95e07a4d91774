// Package web serves the optional HTTP listener: the WebSocket command
// transport at /ws and a live feed of editor events.
package web

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Config holds HTTP listener settings.
type Config struct {
	Listen   string
	Username string // HTTP Basic Auth username (empty = no auth).
	Password string // HTTP Basic Auth password (empty = no auth).
}

// Server serves /ws, /events/stream and /events/recent on a TCP port.
type Server struct {
	listen     string
	nc         *nats.Conn
	httpServer *http.Server
	logger     zerolog.Logger
	eventBus   *EventBus
	username   string
	password   string

	mu    sync.Mutex
	addr  string
	ready chan struct{}
	sub   *nats.Subscription
}

// New creates the HTTP server. ws handles /ws; nc feeds the event routes
// and may be nil.
func New(cfg Config, ws http.Handler, nc *nats.Conn, logger zerolog.Logger) *Server {
	s := &Server{
		listen:   cfg.Listen,
		nc:       nc,
		logger:   logger.With().Str("component", "web").Logger(),
		eventBus: NewEventBus(50),
		username: cfg.Username,
		password: cfg.Password,
		ready:    make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.Handle("GET /ws", ws)
	mux.HandleFunc("GET /events/stream", s.handleEventStream)
	mux.HandleFunc("GET /events/recent", s.handleRecentEvents)

	s.httpServer = &http.Server{Handler: s.securityMiddleware(mux)}
	return s
}

func (s *Server) securityMiddleware(next http.Handler) http.Handler {
	authEnabled := s.username != "" && s.password != ""
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if authEnabled {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(s.username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(s.password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="edbridge"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// Start begins listening on TCP. Blocks until Shutdown or error.
func (s *Server) Start() error {
	if s.nc != nil {
		sub, err := s.nc.Subscribe("edbridge.events.>", func(msg *nats.Msg) {
			s.eventBus.Publish(msg.Data)
		})
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.sub = sub
		s.mu.Unlock()
	}

	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info().Str("listen", s.addr).Msg("HTTP listener started")
	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown gracefully stops the server and the event subscription.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	return s.httpServer.Shutdown(ctx)
}
