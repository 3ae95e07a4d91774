package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/internal/editor"
	"github.com/sekia-ai/edbridge/internal/sim"
	"github.com/sekia-ai/edbridge/internal/snippets"
	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// routerClient runs commands in-process against the simulated editor.
type routerClient struct {
	r    *editor.Router
	sent []string
	err  error
}

func (c *routerClient) Send(ctx context.Context, command string, params map[string]any) (protocol.Envelope, error) {
	if c.err != nil {
		return protocol.Envelope{}, c.err
	}
	c.sent = append(c.sent, command)
	if command == "ping" {
		return protocol.NewEnvelope(protocol.Response{"message": "pong"}), nil
	}
	return protocol.NewEnvelope(c.r.Dispatch(ctx, command, params)), nil
}

func (c *routerClient) Close() error { return nil }

type mockAPI struct {
	status *protocol.StatusResponse
}

func (m *mockAPI) GetStatus(context.Context) (*protocol.StatusResponse, error) {
	return m.status, nil
}
func (m *mockAPI) GetCommands(context.Context) (*protocol.CommandsResponse, error) {
	return &protocol.CommandsResponse{}, nil
}
func (m *mockAPI) GetSnippets(context.Context) (*protocol.SnippetsResponse, error) {
	return &protocol.SnippetsResponse{}, nil
}
func (m *mockAPI) ReloadSnippets(context.Context) error { return nil }

func newTestServer(t *testing.T) (*MCPServer, *routerClient) {
	t.Helper()
	h, err := sim.New(context.Background(), sim.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	lib, err := snippets.New("", false, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	c := &routerClient{r: editor.NewRouter(h, zerolog.Nop())}
	return New(c, &mockAPI{status: &protocol.StatusResponse{Status: "ok", RequestsHandled: 4}}, lib, zerolog.Nop()), c
}

func call(t *testing.T, h func(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error), args map[string]any) (*mcplib.CallToolResult, string) {
	t.Helper()
	var req mcplib.CallToolRequest
	req.Params.Arguments = args
	result, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result, result.Content[0].(mcplib.TextContent).Text
}

func TestEveryCommandHasATool(t *testing.T) {
	tools := map[string]toolSpec{}
	for _, spec := range editorTools {
		tools[spec.command] = spec
	}

	r := editor.NewRouter(nil, zerolog.Nop())
	for _, ci := range r.Commands() {
		if ci.Deprecated {
			if _, ok := tools[ci.Name]; ok {
				t.Errorf("deprecated alias %s exposed as a tool", ci.Name)
			}
			continue
		}
		spec, ok := tools[ci.Name]
		if !ok {
			t.Errorf("no tool for %s", ci.Name)
			continue
		}
		if spec.readOnly != ci.ReadOnly {
			t.Errorf("%s: readOnly = %v, router says %v", ci.Name, spec.readOnly, ci.ReadOnly)
		}
	}
}

func TestToolSchemas(t *testing.T) {
	for _, spec := range editorTools {
		if spec.command != "set_actor_property" {
			continue
		}
		tool := spec.tool()
		want := []string{"name", "property_name", "property_value"}
		if strings.Join(tool.InputSchema.Required, ",") != strings.Join(want, ",") {
			t.Errorf("required = %v", tool.InputSchema.Required)
		}
		if _, ok := tool.InputSchema.Properties["property_value"]; !ok {
			t.Error("property_value not declared")
		}
	}
}

func TestForwardSuccessAndError(t *testing.T) {
	s, c := newTestServer(t)

	result, text := call(t, s.forward("spawn_actor"), map[string]any{
		"type": "SpotLight", "name": "Spot", "location": []any{1.0, 2.0, 3.0},
	})
	if result.IsError {
		t.Fatalf("spawn failed: %s", text)
	}
	var actor map[string]any
	if err := json.Unmarshal([]byte(text), &actor); err != nil {
		t.Fatal(err)
	}
	if actor["name"] != "Spot" || actor["class"] != "SpotLight" {
		t.Errorf("actor = %v", actor)
	}

	result, text = call(t, s.forward("get_actor_properties"), map[string]any{"name": "Ghost"})
	if !result.IsError || text != "Actor not found: Ghost" {
		t.Errorf("result = %v %q", result.IsError, text)
	}
	if len(c.sent) != 2 {
		t.Errorf("sent = %v", c.sent)
	}
}

func TestForwardIncludesFailureDetails(t *testing.T) {
	s, _ := newTestServer(t)
	result, text := call(t, s.forward("exec_editor_python"), map[string]any{"code": "print('before')\nerror('boom')"})
	if !result.IsError {
		t.Fatalf("expected error result, got %s", text)
	}
	if !strings.Contains(text, "boom") || !strings.Contains(text, "before") {
		t.Errorf("text = %q", text)
	}
}

func TestTransportFailure(t *testing.T) {
	s, c := newTestServer(t)
	c.err = errors.New("connection refused")
	result, text := call(t, s.forward("ping"), nil)
	if !result.IsError || !strings.Contains(text, "connection refused") {
		t.Errorf("result = %v %q", result.IsError, text)
	}
}

func TestSnippetTools(t *testing.T) {
	s, _ := newTestServer(t)

	sn, ok := s.lib.Get("set_selected_actors")
	if !ok {
		t.Fatal("set_selected_actors missing")
	}
	tool := snippetTool(sn)
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "actor_names" {
		t.Errorf("required = %v", tool.InputSchema.Required)
	}

	result, text := call(t, s.runSnippet("set_selected_actors"), map[string]any{"actor_names": []any{"Floor"}})
	if result.IsError {
		t.Fatalf("select failed: %s", text)
	}
	result, text = call(t, s.runSnippet("get_selected_actors"), nil)
	if result.IsError || !strings.Contains(text, "Floor") {
		t.Errorf("selection = %v %s", result.IsError, text)
	}
}

func TestGetBridgeStatus(t *testing.T) {
	s, _ := newTestServer(t)
	result, text := call(t, s.handleGetStatus, nil)
	if result.IsError {
		t.Fatal(text)
	}
	var st protocol.StatusResponse
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		t.Fatal(err)
	}
	if st.RequestsHandled != 4 {
		t.Errorf("status = %+v", st)
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s, _ := newTestServer(t)
	if s.NewServer() == nil {
		t.Fatal("nil server")
	}
}
