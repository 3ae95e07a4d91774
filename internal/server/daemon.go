// Package server wires the edbridged daemon: the simulated editor, the
// serializing bridge, the transports, embedded NATS and the control API.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/internal/api"
	"github.com/sekia-ai/edbridge/internal/bridge"
	"github.com/sekia-ai/edbridge/internal/editor"
	"github.com/sekia-ai/edbridge/internal/natsserver"
	"github.com/sekia-ai/edbridge/internal/sim"
	"github.com/sekia-ai/edbridge/internal/snippets"
	"github.com/sekia-ai/edbridge/internal/transport"
	"github.com/sekia-ai/edbridge/internal/web"
)

// EventSubjects are retained in the JetStream event stream.
var EventSubjects = []string{"edbridge.events.>"}

// Daemon is the edbridged process.
type Daemon struct {
	cfg    Config
	logger zerolog.Logger

	nats      *natsserver.Server
	host      *sim.Host
	bridge    *bridge.Bridge
	snippets  *snippets.Library
	tcp       *transport.TCPServer
	responder *transport.NATSResponder
	web       *web.Server
	apiServer *api.Server

	startedAt time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	ready     chan struct{}
}

// NewDaemon creates a Daemon from config.
func NewDaemon(cfg Config, logger zerolog.Logger) *Daemon {
	return &Daemon{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		ready:  make(chan struct{}),
	}
}

// Run starts all subsystems and blocks until a signal is received or Stop is called.
func (d *Daemon) Run() error {
	d.startedAt = time.Now()
	errCh := make(chan error, 4)

	if err := d.start(errCh); err != nil {
		d.shutdown()
		return err
	}
	close(d.ready)

	d.logger.Info().
		Str("socket", d.cfg.Server.Socket).
		Str("tcp", d.TCPAddr()).
		Str("http", d.HTTPAddr()).
		Msg("edbridged started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-d.stopCh:
		d.logger.Info().Msg("stop requested, shutting down")
	case err := <-errCh:
		if err != nil {
			d.logger.Error().Err(err).Msg("listener error")
		}
	}

	return d.shutdown()
}

func (d *Daemon) start(errCh chan error) error {
	ctx := context.Background()

	// 1. Embedded NATS.
	if d.cfg.NATS.Embedded {
		nsCfg := natsserver.Config{
			StoreDir: d.cfg.NATS.DataDir,
			Host:     d.cfg.NATS.Host,
			Port:     d.cfg.NATS.Port,
			Token:    d.cfg.NATS.Token,
		}
		if d.cfg.NATS.Events {
			nsCfg.EventSubjects = EventSubjects
			nsCfg.EventMaxAge = d.cfg.NATS.EventMaxAge
		}
		ns, err := natsserver.New(nsCfg, d.logger)
		if err != nil {
			return fmt.Errorf("start nats: %w", err)
		}
		d.nats = ns
	}

	// 2. Editor host and bridge.
	host, err := sim.New(ctx, sim.Config{
		StorePath:        d.cfg.Editor.StorePath,
		StartLevel:       d.cfg.Editor.StartLevel,
		Headless:         d.cfg.Editor.Headless,
		ViewportWidth:    d.cfg.Editor.ViewportWidth,
		ViewportHeight:   d.cfg.Editor.ViewportHeight,
		ScriptingEnabled: d.cfg.Editor.ScriptingEnabled,
		ScriptTimeout:    d.cfg.Editor.ScriptTimeout,
	}, d.logger)
	if err != nil {
		return fmt.Errorf("start editor host: %w", err)
	}
	d.host = host

	d.bridge = bridge.New(editor.NewRouter(host, d.logger), d.cfg.Bridge.QueueSize, d.logger)
	if d.nats != nil && d.cfg.NATS.Events {
		d.bridge.SetPublisher(d.nats.Conn())
	}
	d.bridge.Start()

	// 3. Snippet library.
	lib, err := snippets.New(d.cfg.Snippets.Dir, d.cfg.Snippets.VerifyIntegrity, d.logger)
	if err != nil {
		return fmt.Errorf("load snippets: %w", err)
	}
	d.snippets = lib
	if err := lib.LoadDir(); err != nil {
		d.logger.Warn().Err(err).Str("dir", d.cfg.Snippets.Dir).Msg("snippet directory not loaded")
	} else if d.cfg.Snippets.HotReload {
		if err := lib.StartWatcher(); err != nil {
			d.logger.Warn().Err(err).Msg("snippet hot reload disabled")
		}
	}

	// 4. Transports.
	timeout := d.cfg.Bridge.CommandTimeout
	if d.cfg.TCP.Enabled {
		d.tcp = transport.NewTCPServer(d.cfg.TCP.Listen, d.bridge, timeout, d.logger)
		go func() { errCh <- d.tcp.Start() }()
		if err := waitReady(d.tcp.Ready(), errCh); err != nil {
			return fmt.Errorf("start tcp transport: %w", err)
		}
	}
	if d.nats != nil {
		d.responder = transport.NewNATSResponder(d.nats.Conn(), d.bridge, d.cfg.Security.CommandSecret, timeout, d.logger)
		if err := d.responder.Start(); err != nil {
			return fmt.Errorf("start nats transport: %w", err)
		}
	}
	if d.cfg.HTTP.Listen != "" {
		var nc *nats.Conn
		if d.nats != nil {
			nc = d.nats.Conn()
		}
		d.web = web.New(web.Config{
			Listen:   d.cfg.HTTP.Listen,
			Username: d.cfg.HTTP.Username,
			Password: d.cfg.HTTP.Password,
		}, transport.NewWSHandler(d.bridge, timeout, d.logger), nc, d.logger)
		go func() { errCh <- d.web.Start() }()
		if err := waitReady(d.web.Ready(), errCh); err != nil {
			return fmt.Errorf("start http listener: %w", err)
		}
	}

	// 5. Control API.
	deps := api.Deps{Bridge: d.bridge, Level: host, Snippets: lib}
	if d.nats != nil {
		deps.Events = d.nats
	}
	d.apiServer = api.New(d.cfg.Server.Socket, deps, d.startedAt, d.logger)
	go func() { errCh <- d.apiServer.Start() }()
	return nil
}

func waitReady(ready <-chan struct{}, errCh <-chan error) error {
	select {
	case <-ready:
		return nil
	case err := <-errCh:
		if err == nil {
			err = fmt.Errorf("listener stopped")
		}
		return err
	case <-time.After(10 * time.Second):
		return fmt.Errorf("listener not ready")
	}
}

// Stop signals the daemon to shut down. Safe to call from another goroutine.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Ready is closed once every subsystem has started.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// TCPAddr returns the bound TCP transport address, or "" when disabled.
func (d *Daemon) TCPAddr() string {
	if d.tcp == nil {
		return ""
	}
	return d.tcp.Addr()
}

// HTTPAddr returns the bound HTTP listener address, or "" when disabled.
func (d *Daemon) HTTPAddr() string {
	if d.web == nil {
		return ""
	}
	return d.web.Addr()
}

// NATSClientURL returns the embedded NATS server's client URL.
func (d *Daemon) NATSClientURL() string {
	if d.nats == nil {
		return ""
	}
	return d.nats.ClientURL()
}

// NATSConnectOpts returns NATS connection options for in-process connections.
func (d *Daemon) NATSConnectOpts() []nats.Option {
	if d.nats == nil {
		return nil
	}
	return []nats.Option{nats.InProcessServer(d.nats.NATSServer())}
}

func (d *Daemon) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if d.apiServer != nil {
		d.apiServer.Shutdown(ctx)
	}
	if d.web != nil {
		d.web.Shutdown(ctx)
	}
	if d.responder != nil {
		d.responder.Stop()
	}
	if d.tcp != nil {
		d.tcp.Shutdown(ctx)
	}
	if d.snippets != nil {
		d.snippets.Stop()
	}
	if d.bridge != nil {
		d.bridge.Stop()
	}
	if d.host != nil {
		if err := d.host.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("close package store")
		}
	}
	if d.nats != nil {
		d.nats.Shutdown()
	}
	return nil
}
