package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/internal/bridge"
	"github.com/sekia-ai/edbridge/internal/editor"
	"github.com/sekia-ai/edbridge/internal/natsserver"
	"github.com/sekia-ai/edbridge/internal/sim"
	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// echoExecutor answers every request with its own command and params.
type echoExecutor struct {
	mu   sync.Mutex
	reqs []protocol.Request
}

func (e *echoExecutor) ExecuteEnvelope(_ context.Context, req protocol.Request) protocol.Envelope {
	e.mu.Lock()
	e.reqs = append(e.reqs, req)
	e.mu.Unlock()
	if req.Type == "fail" {
		env := protocol.ErrorEnvelope("boom")
		env.RequestID = req.RequestID
		return env
	}
	return protocol.Envelope{
		RequestID: req.RequestID,
		Status:    protocol.StatusSuccess,
		Result:    map[string]any{"command": req.Type, "params": req.Params},
	}
}

func startTCP(t *testing.T, exec Executor) *TCPServer {
	t.Helper()
	srv := NewTCPServer("127.0.0.1:0", exec, 5*time.Second, zerolog.Nop())
	go srv.Start()
	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("tcp server not ready")
	}
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func roundTrip(t *testing.T, addr, body string) protocol.Envelope {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	var env protocol.Envelope
	if err := json.NewDecoder(conn).Decode(&env); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return env
}

func TestTCPOneRequestPerConnection(t *testing.T) {
	exec := &echoExecutor{}
	srv := startTCP(t, exec)

	env := roundTrip(t, srv.Addr(), `{"type":"get_actors_in_level","params":{"a":1}}`)
	if !env.OK() || env.Result["command"] != "get_actors_in_level" {
		t.Errorf("env = %+v", env)
	}

	env = roundTrip(t, srv.Addr(), `{"type":"fail"}`)
	if env.OK() || env.Error != "boom" {
		t.Errorf("env = %+v", env)
	}
}

func TestTCPRejectsBadRequests(t *testing.T) {
	exec := &echoExecutor{}
	srv := startTCP(t, exec)

	env := roundTrip(t, srv.Addr(), `{"type": }`)
	if env.OK() || !strings.HasPrefix(env.Error, "Invalid JSON request") {
		t.Errorf("env = %+v", env)
	}
	env = roundTrip(t, srv.Addr(), `{"params":{}}`)
	if env.Error != "Missing 'type' field in request" {
		t.Errorf("env = %+v", env)
	}
	if len(exec.reqs) != 0 {
		t.Errorf("bad requests reached the executor: %v", exec.reqs)
	}
}

func TestTCPAgainstSimulatedEditor(t *testing.T) {
	host, err := sim.New(context.Background(), sim.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer host.Close()
	b := bridge.New(editor.NewRouter(host, zerolog.Nop()), 0, zerolog.Nop())
	b.Start()
	defer b.Stop()
	srv := startTCP(t, b)

	env := roundTrip(t, srv.Addr(), `{"type":"spawn_actor","params":{"type":"PointLight","name":"Key","location":[0,0,300]}}`)
	if !env.OK() || env.Result["name"] != "Key" {
		t.Fatalf("spawn: %+v", env)
	}
	env = roundTrip(t, srv.Addr(), `{"type":"spawn_actor","params":{"type":"PointLight","name":"Key"}}`)
	if env.Error != "Actor with name 'Key' already exists" {
		t.Errorf("duplicate spawn: %+v", env)
	}
	env = roundTrip(t, srv.Addr(), `{"type":"ping"}`)
	if env.Result["message"] != "pong" {
		t.Errorf("ping: %+v", env)
	}
}

func TestWebSocketKeepsRequestIDs(t *testing.T) {
	exec := &echoExecutor{}
	hs := httptest.NewServer(NewWSHandler(exec, 5*time.Second, zerolog.Nop()))
	defer hs.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	for _, id := range []string{"a", "b", "c"} {
		if err := conn.WriteJSON(protocol.Request{Type: "open_level", Params: map[string]any{"level": id}, RequestID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := conn.WriteJSON(protocol.Request{RequestID: "d"}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	got := map[string]protocol.Envelope{}
	for i := 0; i < 4; i++ {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatal(err)
		}
		got[env.RequestID] = env
	}
	for _, id := range []string{"a", "b", "c"} {
		params, _ := got[id].Result["params"].(map[string]any)
		if !got[id].OK() || params["level"] != id {
			t.Errorf("reply %s = %+v", id, got[id])
		}
	}
	if got["d"].Error != "Missing 'type' field in request" {
		t.Errorf("reply d = %+v", got["d"])
	}
}

func startNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	srv, err := natsserver.New(natsserver.Config{StoreDir: t.TempDir()}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srv.Shutdown)
	nc, err := nats.Connect(srv.ClientURL(), nats.InProcessServer(srv.NATSServer()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(nc.Close)
	return srv, nc
}

func natsRequest(t *testing.T, nc *nats.Conn, cmd protocol.Command) protocol.Envelope {
	t.Helper()
	data, _ := json.Marshal(cmd)
	msg, err := nc.Request(protocol.SubjectCommands, data, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestNATSVerifiesSignatures(t *testing.T) {
	srv, nc := startNATS(t)
	exec := &echoExecutor{}
	r := NewNATSResponder(srv.Conn(), exec, "s3cret", 5*time.Second, zerolog.Nop())
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	cmd := protocol.Command{Command: "save_all_levels", Params: map[string]any{}, Source: "test"}
	env := natsRequest(t, nc, cmd)
	if env.Error != "Invalid command signature" {
		t.Errorf("unsigned: %+v", env)
	}

	if err := protocol.SignCommand(&cmd, "s3cret"); err != nil {
		t.Fatal(err)
	}
	env = natsRequest(t, nc, cmd)
	if !env.OK() || env.Result["command"] != "save_all_levels" {
		t.Errorf("signed: %+v", env)
	}

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if len(exec.reqs) != 1 {
		t.Errorf("executor saw %d requests, want 1", len(exec.reqs))
	}
}

func TestNATSWithoutSecretAcceptsUnsigned(t *testing.T) {
	srv, nc := startNATS(t)
	r := NewNATSResponder(srv.Conn(), &echoExecutor{}, "", 5*time.Second, zerolog.Nop())
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	env := natsRequest(t, nc, protocol.Command{Command: "get_current_level_info", Source: "test"})
	if !env.OK() {
		t.Errorf("env = %+v", env)
	}
	env = natsRequest(t, nc, protocol.Command{Source: "test"})
	if env.Error != "Missing 'command' field in request" {
		t.Errorf("env = %+v", env)
	}
}
