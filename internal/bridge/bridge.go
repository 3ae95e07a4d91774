// Package bridge runs editor commands one at a time on behalf of every
// transport and publishes change events.
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/internal/editor"
	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// PingCommand is answered by the bridge without reaching the editor.
const PingCommand = "ping"

// EventSource is the source name of published editor events.
const EventSource = "editor"

const defaultQueueSize = 64

// Dispatcher runs one command. *editor.Router implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, command string, params map[string]any) protocol.Response
	Commands() []protocol.CommandInfo
	Mutates(command string) bool
}

var _ Dispatcher = (*editor.Router)(nil)

// Stats is a snapshot of bridge counters.
type Stats struct {
	RequestsHandled int64
	Errors          int64
	LastCommand     string
	LastCommandAt   time.Time
}

type job struct {
	ctx   context.Context
	req   protocol.Request
	reply chan protocol.Response
}

// Bridge serializes command execution on a single goroutine so name-based
// checks and the mutations that follow them cannot interleave.
type Bridge struct {
	dispatcher Dispatcher
	logger     zerolog.Logger
	jobs       chan job
	stopCh     chan struct{}
	done       chan struct{}
	stopOnce   sync.Once

	handled atomic.Int64
	errors  atomic.Int64

	mu        sync.Mutex
	lastCmd   string
	lastCmdAt time.Time
	nc        *nats.Conn
}

// New creates a Bridge. Call Start before Execute.
func New(d Dispatcher, queueSize int, logger zerolog.Logger) *Bridge {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bridge{
		dispatcher: d,
		logger:     logger.With().Str("component", "bridge").Logger(),
		jobs:       make(chan job, queueSize),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// SetPublisher enables editor.<command> events on nc after successful
// mutating commands. A nil conn disables publishing.
func (b *Bridge) SetPublisher(nc *nats.Conn) {
	b.mu.Lock()
	b.nc = nc
	b.mu.Unlock()
}

// Start launches the executor goroutine.
func (b *Bridge) Start() {
	go b.run()
}

// Stop stops accepting work and waits for the running command to finish.
// Queued commands that have not started are answered with an error.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		<-b.done
	})
}

func (b *Bridge) run() {
	defer close(b.done)
	for {
		select {
		case <-b.stopCh:
			b.drain()
			return
		case j := <-b.jobs:
			if err := j.ctx.Err(); err != nil {
				j.reply <- protocol.ErrorResponse("Request abandoned before execution: " + err.Error())
				continue
			}
			// A started command runs to completion even if the caller gives up.
			j.reply <- b.dispatch(context.WithoutCancel(j.ctx), j.req)
		}
	}
}

func (b *Bridge) drain() {
	for {
		select {
		case j := <-b.jobs:
			j.reply <- protocol.ErrorResponse("Bridge is shutting down")
		default:
			return
		}
	}
}

// Execute runs req and returns the raw handler response. The call waits for
// earlier requests; ctx bounds that wait.
func (b *Bridge) Execute(ctx context.Context, req protocol.Request) protocol.Response {
	if req.RequestID == "" {
		req.RequestID = protocol.NewRequestID()
	}
	if req.Type == PingCommand {
		b.record(req.Type, false)
		return protocol.Response{"message": "pong"}
	}

	j := job{ctx: ctx, req: req, reply: make(chan protocol.Response, 1)}
	select {
	case <-b.stopCh:
		return protocol.ErrorResponse("Bridge is shutting down")
	default:
	}
	select {
	case b.jobs <- j:
	case <-ctx.Done():
		return protocol.ErrorResponse("Timed out waiting for the editor: " + ctx.Err().Error())
	case <-b.stopCh:
		return protocol.ErrorResponse("Bridge is shutting down")
	}

	select {
	case resp := <-j.reply:
		return resp
	case <-ctx.Done():
		return protocol.ErrorResponse("Timed out waiting for the editor: " + ctx.Err().Error())
	case <-b.done:
		select {
		case resp := <-j.reply:
			return resp
		default:
			return protocol.ErrorResponse("Bridge is shutting down")
		}
	}
}

// ExecuteEnvelope runs req and wraps the response in the canonical envelope.
func (b *Bridge) ExecuteEnvelope(ctx context.Context, req protocol.Request) protocol.Envelope {
	if req.RequestID == "" {
		req.RequestID = protocol.NewRequestID()
	}
	env := protocol.NewEnvelope(b.Execute(ctx, req))
	env.RequestID = req.RequestID
	return env
}

func (b *Bridge) dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	start := time.Now()
	resp := b.dispatcher.Dispatch(ctx, req.Type, req.Params)
	failed := resp.IsError()
	b.record(req.Type, failed)

	ev := b.logger.Debug()
	if failed {
		ev = b.logger.Warn().Str("error", resp.ErrorMessage())
	}
	ev.Str("request_id", req.RequestID).
		Str("command", req.Type).
		Dur("took", time.Since(start)).
		Msg("command handled")

	if !failed && b.dispatcher.Mutates(req.Type) {
		b.publish(req)
	}
	return resp
}

func (b *Bridge) record(command string, failed bool) {
	b.handled.Add(1)
	if failed {
		b.errors.Add(1)
	}
	b.mu.Lock()
	b.lastCmd = command
	b.lastCmdAt = time.Now()
	b.mu.Unlock()
}

func (b *Bridge) publish(req protocol.Request) {
	b.mu.Lock()
	nc := b.nc
	b.mu.Unlock()
	if nc == nil {
		return
	}

	ev := protocol.NewEvent("editor."+req.Type, EventSource, map[string]any{
		"request_id": req.RequestID,
		"params":     req.Params,
	})
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error().Err(err).Msg("marshal event")
		return
	}
	if err := nc.Publish(protocol.SubjectEvents(EventSource), data); err != nil {
		b.logger.Error().Err(err).Str("command", req.Type).Msg("publish event")
	}
}

// Stats returns a snapshot of the counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		RequestsHandled: b.handled.Load(),
		Errors:          b.errors.Load(),
		LastCommand:     b.lastCmd,
		LastCommandAt:   b.lastCmdAt,
	}
}

// Commands lists the editor commands plus ping.
func (b *Bridge) Commands() []protocol.CommandInfo {
	cmds := append([]protocol.CommandInfo{{Name: PingCommand, ReadOnly: true}}, b.dispatcher.Commands()...)
	return cmds
}
