package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/internal/natsserver"
	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// mockDispatcher records calls and detects overlapping execution.
type mockDispatcher struct {
	mu       sync.Mutex
	calls    []string
	running  int
	overlap  bool
	delay    time.Duration
	block    chan struct{}
	response func(command string) protocol.Response
}

func (m *mockDispatcher) Dispatch(_ context.Context, command string, _ map[string]any) protocol.Response {
	m.mu.Lock()
	m.running++
	if m.running > 1 {
		m.overlap = true
	}
	m.calls = append(m.calls, command)
	m.mu.Unlock()

	if m.block != nil {
		<-m.block
	}
	time.Sleep(m.delay)

	m.mu.Lock()
	m.running--
	m.mu.Unlock()

	if m.response != nil {
		return m.response(command)
	}
	return protocol.Response{"ok": true}
}

func (m *mockDispatcher) Commands() []protocol.CommandInfo {
	return []protocol.CommandInfo{{Name: "spawn_actor"}, {Name: "get_actors_in_level", ReadOnly: true}}
}

func (m *mockDispatcher) Mutates(command string) bool {
	return command == "spawn_actor"
}

func startBridge(t *testing.T, d Dispatcher) *Bridge {
	t.Helper()
	b := New(d, 0, zerolog.Nop())
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

func TestPingAnsweredByBridge(t *testing.T) {
	d := &mockDispatcher{}
	b := startBridge(t, d)

	resp := b.Execute(context.Background(), protocol.Request{Type: "ping"})
	if resp["message"] != "pong" {
		t.Errorf("ping = %v", resp)
	}
	if len(d.calls) != 0 {
		t.Errorf("ping reached the dispatcher: %v", d.calls)
	}
	if s := b.Stats(); s.RequestsHandled != 1 || s.LastCommand != "ping" {
		t.Errorf("stats = %+v", s)
	}
}

func TestExecutionIsSerialized(t *testing.T) {
	d := &mockDispatcher{delay: 5 * time.Millisecond}
	b := startBridge(t, d)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Execute(context.Background(), protocol.Request{Type: "spawn_actor"})
		}()
	}
	wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.overlap {
		t.Error("two commands ran at the same time")
	}
	if len(d.calls) != 20 {
		t.Errorf("ran %d commands, want 20", len(d.calls))
	}
}

func TestStatsCountErrors(t *testing.T) {
	d := &mockDispatcher{response: func(command string) protocol.Response {
		if command == "bad" {
			return protocol.ErrorResponse("Unknown editor command: bad")
		}
		return protocol.Response{}
	}}
	b := startBridge(t, d)

	b.Execute(context.Background(), protocol.Request{Type: "get_actors_in_level"})
	env := b.ExecuteEnvelope(context.Background(), protocol.Request{Type: "bad"})
	if env.OK() || env.Error != "Unknown editor command: bad" || env.RequestID == "" {
		t.Errorf("envelope = %+v", env)
	}

	s := b.Stats()
	if s.RequestsHandled != 2 || s.Errors != 1 || s.LastCommand != "bad" || s.LastCommandAt.IsZero() {
		t.Errorf("stats = %+v", s)
	}
}

func TestWaitTimeoutDoesNotCancelRunningCommand(t *testing.T) {
	d := &mockDispatcher{block: make(chan struct{})}
	b := startBridge(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	resp := b.Execute(ctx, protocol.Request{Type: "spawn_actor"})
	if !resp.IsError() {
		t.Fatalf("expected timeout error, got %v", resp)
	}

	// The started command still finishes once unblocked.
	close(d.block)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Stats().RequestsHandled == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("blocked command never completed")
}

func TestStopRejectsNewWork(t *testing.T) {
	b := New(&mockDispatcher{}, 0, zerolog.Nop())
	b.Start()
	b.Stop()
	b.Stop()

	resp := b.Execute(context.Background(), protocol.Request{Type: "spawn_actor"})
	if resp.ErrorMessage() != "Bridge is shutting down" {
		t.Errorf("resp = %v", resp)
	}
}

func TestCommandsIncludePing(t *testing.T) {
	b := New(&mockDispatcher{}, 0, zerolog.Nop())
	cmds := b.Commands()
	if len(cmds) != 3 || cmds[0].Name != "ping" {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestPublishesEventsForMutations(t *testing.T) {
	srv, err := natsserver.New(natsserver.Config{StoreDir: t.TempDir()}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown()

	nc, err := nats.Connect(srv.ClientURL(), nats.InProcessServer(srv.NATSServer()))
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	events := make(chan protocol.Event, 4)
	sub, err := nc.Subscribe(protocol.SubjectEvents(EventSource), func(msg *nats.Msg) {
		var ev protocol.Event
		if err := json.Unmarshal(msg.Data, &ev); err == nil {
			events <- ev
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()
	nc.Flush()

	b := startBridge(t, &mockDispatcher{})
	b.SetPublisher(srv.Conn())

	b.Execute(context.Background(), protocol.Request{Type: "get_actors_in_level"})
	b.Execute(context.Background(), protocol.Request{Type: "spawn_actor", Params: map[string]any{"name": "A"}, RequestID: "req_1"})

	select {
	case ev := <-events:
		if ev.Type != "editor.spawn_actor" || ev.Source != "editor" || ev.Payload["request_id"] != "req_1" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event published")
	}

	select {
	case ev := <-events:
		t.Errorf("unexpected second event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
