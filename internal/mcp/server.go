// Package mcp exposes the editor commands and script snippets as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/internal/client"
	"github.com/sekia-ai/edbridge/internal/snippets"
)

// Version is reported to MCP clients.
var Version = "dev"

// MCPServer forwards tool calls to edbridged.
type MCPServer struct {
	client client.Client
	api    client.DaemonAPI
	lib    *snippets.Library
	logger zerolog.Logger
}

// New creates an MCPServer over an existing client. api may be nil.
func New(c client.Client, api client.DaemonAPI, lib *snippets.Library, logger zerolog.Logger) *MCPServer {
	return &MCPServer{
		client: c,
		api:    api,
		lib:    lib,
		logger: logger.With().Str("component", "mcp").Logger(),
	}
}

// Dial builds the client, API client and snippet library described by cfg.
func Dial(cfg Config, logger zerolog.Logger) (*MCPServer, error) {
	var c client.Client
	switch cfg.Bridge.Transport {
	case TransportTCP, "":
		c = client.NewTCPClient(cfg.Bridge.TCPAddr, cfg.Bridge.Timeout)
	case TransportNATS:
		nc, err := client.NewNATSClient(client.NATSConfig{
			URL:     cfg.NATS.URL,
			Token:   cfg.NATS.Token,
			Secret:  cfg.Security.CommandSecret,
			Source:  "mcp",
			Timeout: cfg.Bridge.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		c = nc
	default:
		return nil, fmt.Errorf("unknown bridge transport %q", cfg.Bridge.Transport)
	}

	lib, err := snippets.New(cfg.Snippets.Dir, cfg.Snippets.VerifyIntegrity, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	if err := lib.LoadDir(); err != nil {
		logger.Warn().Err(err).Msg("snippet directory not loaded")
	}

	var api client.DaemonAPI
	if cfg.Daemon.Socket != "" {
		api = client.NewAPIClient(cfg.Daemon.Socket)
	}
	return New(c, api, lib, logger), nil
}

// NewServer builds the mcp-go server with every tool registered.
func (s *MCPServer) NewServer() *mcpserver.MCPServer {
	srv := mcpserver.NewMCPServer(
		"edbridge",
		Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	s.registerTools(srv)
	return srv
}

// Run serves on stdio until stdin is closed or ctx is cancelled.
func (s *MCPServer) Run(ctx context.Context) error {
	defer s.client.Close()

	stdio := mcpserver.NewStdioServer(s.NewServer())
	stdio.SetErrorLogger(log.New(os.Stderr, "", log.LstdFlags))

	s.logger.Info().Msg("MCP server starting on stdio")
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *MCPServer) registerTools(srv *mcpserver.MCPServer) {
	for _, spec := range editorTools {
		srv.AddTool(spec.tool(), s.forward(spec.command))
	}
	if s.lib != nil {
		for _, sn := range s.lib.List() {
			srv.AddTool(snippetTool(sn), s.runSnippet(sn.Name))
		}
	}
	if s.api != nil {
		srv.AddTool(
			mcplib.NewTool("get_bridge_status",
				mcplib.WithDescription("Get edbridged status: uptime, handled requests, errors, current level and actor count"),
				mcplib.WithReadOnlyHintAnnotation(true),
			),
			s.handleGetStatus,
		)
	}
}
