package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// DefaultTCPAddr is where editor-side bridges traditionally listen.
const DefaultTCPAddr = "127.0.0.1:55557"

// TCPServer reads one JSON request per connection, writes one envelope and
// closes the connection.
type TCPServer struct {
	addr    string
	exec    Executor
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	ln     net.Listener
	conns  sync.WaitGroup
	closed bool
	ready  chan struct{}
}

// NewTCPServer creates a server for addr. A zero timeout uses DefaultCommandTimeout.
func NewTCPServer(addr string, exec Executor, timeout time.Duration, logger zerolog.Logger) *TCPServer {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &TCPServer{
		addr:    addr,
		exec:    exec,
		timeout: timeout,
		logger:  logger.With().Str("component", "tcp").Logger(),
		ready:   make(chan struct{}),
	}
}

// Start listens and serves until Shutdown. It returns nil after a clean shutdown.
func (s *TCPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info().Str("listen", ln.Addr().String()).Msg("TCP transport listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handle(conn)
		}()
	}
}

// Ready is closed once the listener is bound.
func (s *TCPServer) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or "" before Start.
func (s *TCPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown closes the listener and waits for open connections until ctx ends.
func (s *TCPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	ln := s.ln
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TCPServer) handle(conn net.Conn) {
	defer conn.Close()
	log := s.logger.With().Str("remote", conn.RemoteAddr().String()).Logger()

	conn.SetReadDeadline(time.Now().Add(s.timeout))
	var req protocol.Request
	var env protocol.Envelope
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("decode request")
		env = protocol.ErrorEnvelope("Invalid JSON request: " + err.Error())
	} else if req.Type == "" {
		env = missingType()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		env = s.exec.ExecuteEnvelope(ctx, req)
		cancel()
	}

	conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if err := json.NewEncoder(conn).Encode(env); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}
