package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// WSHandler upgrades to a WebSocket and answers every {type, params,
// request_id} message with an envelope carrying the same request_id.
type WSHandler struct {
	exec     Executor
	timeout  time.Duration
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler creates the /ws handler. A zero timeout uses DefaultCommandTimeout.
func NewWSHandler(exec Executor, timeout time.Duration, logger zerolog.Logger) *WSHandler {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &WSHandler{
		exec:    exec,
		timeout: timeout,
		upgrader: websocket.Upgrader{
			// Local tooling connects without a browser origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	log := h.logger.With().Str("remote", r.RemoteAddr).Logger()
	log.Debug().Msg("connection opened")
	defer conn.Close()

	// Requests on one connection may overlap; the executor orders them.
	var writeMu sync.Mutex
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		var req protocol.Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("read error")
			}
			return
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			env := h.execute(r.Context(), req)
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := conn.WriteJSON(env); err != nil {
				log.Warn().Err(err).Msg("write error")
			}
		}()
	}
}

func (h *WSHandler) execute(parent context.Context, req protocol.Request) protocol.Envelope {
	if req.Type == "" {
		env := missingType()
		env.RequestID = req.RequestID
		return env
	}
	if req.RequestID == "" {
		req.RequestID = protocol.NewRequestID()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.timeout)
	defer cancel()
	return h.exec.ExecuteEnvelope(ctx, req)
}
