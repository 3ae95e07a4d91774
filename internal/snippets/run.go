package snippets

import (
	"context"
	"fmt"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// ExecCommand is the editor command snippets are executed through.
const ExecCommand = "exec_editor_python"

// Sender delivers one editor command and returns the canonical envelope.
type Sender interface {
	Send(ctx context.Context, command string, params map[string]any) (protocol.Envelope, error)
}

// Execute renders the named snippet, runs it on the editor and returns the
// envelope the snippet printed. Transport failures are returned as errors;
// editor-side failures come back as error envelopes.
func (l *Library) Execute(ctx context.Context, sender Sender, name string, params map[string]any) (protocol.Envelope, error) {
	s, ok := l.Get(name)
	if !ok {
		return protocol.ErrorEnvelope(fmt.Sprintf("Unknown snippet: %s", name)), nil
	}
	code, err := Render(s, params)
	if err != nil {
		return protocol.ErrorEnvelope(fmt.Sprintf("Snippet %s: %v", name, err)), nil
	}

	env, err := sender.Send(ctx, ExecCommand, map[string]any{"code": code})
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("run snippet %s: %w", name, err)
	}
	if !env.OK() {
		return env, nil
	}

	output, _ := env.Result["output"].(string)
	if res, ok := ExtractResult(output); ok {
		res.RequestID = env.RequestID
		return res, nil
	}
	return protocol.Envelope{
		RequestID: env.RequestID,
		Status:    protocol.StatusError,
		Error:     fmt.Sprintf("Snippet %s printed no JSON result", name),
		Details:   map[string]any{"output": output},
	}, nil
}
