// Package api serves the edbridged control API over a Unix socket.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/internal/bridge"
	"github.com/sekia-ai/edbridge/internal/editor"
	"github.com/sekia-ai/edbridge/internal/snippets"
	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// Bridge is the part of *bridge.Bridge the API reports on.
type Bridge interface {
	Stats() bridge.Stats
	Commands() []protocol.CommandInfo
}

// LevelSource reports the open level. editor.Engine implements it.
type LevelSource interface {
	CurrentLevel(ctx context.Context) (editor.LevelInfo, error)
}

// EventCounter reports retained events. *natsserver.Server implements it.
type EventCounter interface {
	StoredEvents(ctx context.Context) (uint64, error)
}

// Deps are the daemon components behind the API. Level, Events and
// Snippets may be nil.
type Deps struct {
	Bridge   Bridge
	Level    LevelSource
	Events   EventCounter
	Snippets *snippets.Library
}

// Server serves the control API.
type Server struct {
	socketPath string
	deps       Deps
	startedAt  time.Time
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates an API server.
func New(socketPath string, deps Deps, startedAt time.Time, logger zerolog.Logger) *Server {
	s := &Server{
		socketPath: socketPath,
		deps:       deps,
		startedAt:  startedAt,
		logger:     logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/commands", s.handleCommands)
	mux.HandleFunc("GET /api/v1/snippets", s.handleSnippets)
	mux.HandleFunc("POST /api/v1/snippets/reload", s.handleSnippetReload)

	s.httpServer = &http.Server{Handler: mux}
	return s
}

// Handler exposes the routes for in-process tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening on the Unix socket. Blocks until Shutdown.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return err
	}
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	os.Chmod(s.socketPath, 0600)

	s.logger.Info().Str("socket", s.socketPath).Msg("API server listening")
	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.deps.Bridge.Stats()
	resp := protocol.StatusResponse{
		Status:          "ok",
		Uptime:          time.Since(s.startedAt).Truncate(time.Second).String(),
		StartedAt:       s.startedAt,
		RequestsHandled: stats.RequestsHandled,
		Errors:          stats.Errors,
		LastCommand:     stats.LastCommand,
		LastCommandAt:   stats.LastCommandAt,
	}
	if s.deps.Level != nil {
		if info, err := s.deps.Level.CurrentLevel(r.Context()); err == nil {
			resp.CurrentLevel = info.PackagePath
			resp.ActorCount = info.ActorCount
		} else {
			resp.Status = "degraded"
		}
	}
	if s.deps.Events != nil {
		resp.NATSRunning = true
		if n, err := s.deps.Events.StoredEvents(r.Context()); err == nil {
			resp.StoredEvents = n
		} else {
			s.logger.Warn().Err(err).Msg("event stream info")
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, protocol.CommandsResponse{Commands: s.deps.Bridge.Commands()})
}

func (s *Server) handleSnippets(w http.ResponseWriter, r *http.Request) {
	infos := []protocol.SnippetInfo{}
	if s.deps.Snippets != nil {
		for _, sn := range s.deps.Snippets.List() {
			info := protocol.SnippetInfo{Name: sn.Name, Description: sn.Description, Origin: sn.Origin}
			for _, p := range sn.Params {
				info.Params = append(info.Params, p.Name)
			}
			infos = append(infos, info)
		}
	}
	writeJSON(w, protocol.SnippetsResponse{Snippets: infos})
}

func (s *Server) handleSnippetReload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Snippets == nil {
		http.Error(w, "snippet library not enabled", http.StatusServiceUnavailable)
		return
	}
	if err := s.deps.Snippets.LoadDir(); err != nil {
		s.logger.Error().Err(err).Msg("snippet reload failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "reloaded"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
