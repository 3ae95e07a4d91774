package web

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()
	ns, err := natsserver.NewServer(&natsserver.Options{
		DontListen: true,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats not ready")
	}
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL(), nats.InProcessServer(ns))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func startServer(t *testing.T, nc *nats.Conn) *Server {
	t.Helper()
	s := New(Config{Listen: "127.0.0.1:0"}, okHandler, nc, zerolog.Nop())
	go s.Start()
	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server not ready")
	}
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func publishEvent(t *testing.T, nc *nats.Conn, typ string) {
	t.Helper()
	data, _ := json.Marshal(protocol.NewEvent(typ, "editor", map[string]any{"request_id": "req_x"}))
	if err := nc.Publish(protocol.SubjectEvents("editor"), data); err != nil {
		t.Fatal(err)
	}
	nc.Flush()
}

func TestEventBusRing(t *testing.T) {
	eb := NewEventBus(3)
	ch, unsub := eb.Subscribe()
	defer unsub()

	eb.Publish([]byte(`{"type":"first"}`))
	select {
	case data := <-ch:
		if string(data) != `{"type":"first"}` {
			t.Errorf("got %s", data)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	for i := 0; i < 5; i++ {
		eb.Publish([]byte(fmt.Sprintf(`{"n":%d}`, i)))
	}
	recent := eb.Recent()
	if len(recent) != 3 || string(recent[0]) != `{"n":2}` || string(recent[2]) != `{"n":4}` {
		t.Errorf("recent = %q", recent)
	}
}

func TestRecentEventsFromNATS(t *testing.T) {
	nc := startNATS(t)
	s := startServer(t, nc)

	publishEvent(t, nc, "editor.spawn_actor")
	publishEvent(t, nc, "editor.delete_actor")

	var body struct {
		Events []protocol.Event `json:"events"`
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + s.Addr() + "/events/recent")
		if err != nil {
			t.Fatal(err)
		}
		json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if len(body.Events) == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(body.Events) != 2 || body.Events[0].Type != "editor.spawn_actor" {
		t.Fatalf("events = %+v", body.Events)
	}
}

func TestEventStream(t *testing.T) {
	nc := startNATS(t)
	s := startServer(t, nc)

	resp, err := http.Get("http://" + s.Addr() + "/events/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	// The subscriber is registered before the headers are flushed.
	publishEvent(t, nc, "editor.open_level")

	lines := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			if data, found := strings.CutPrefix(line, "data: "); found {
				var ev protocol.Event
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					t.Fatal(err)
				}
				if ev.Type != "editor.open_level" {
					t.Errorf("type = %q", ev.Type)
				}
				return
			}
		case <-timeout:
			t.Fatal("no event on stream")
		}
	}
}

func TestBasicAuth(t *testing.T) {
	s := New(Config{Username: "admin", Password: "secret"}, okHandler, nil, zerolog.Nop())
	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	tests := []struct {
		name       string
		user, pass string
		want       int
	}{
		{"none", "", "", http.StatusUnauthorized},
		{"wrong password", "admin", "nope", http.StatusUnauthorized},
		{"correct", "admin", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", ts.URL+"/ws", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
				t.Error("missing nosniff header")
			}
		})
	}
}
