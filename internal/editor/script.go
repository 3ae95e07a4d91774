package editor

import (
	"context"
	"errors"
	"strings"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

func (r *Router) execEditorScript(ctx context.Context, params map[string]any) protocol.Response {
	code, ok := extractString(params, "code")
	if !ok {
		return missing("code")
	}
	if strings.TrimSpace(code) == "" {
		return failf("Python code cannot be empty")
	}

	res, err := r.engine.RunScript(ctx, code)
	if errors.Is(err, ErrScriptingUnavailable) {
		return failf("Editor scripting is not available, enable the scripting plugin in the editor")
	}
	if err != nil {
		return failf("Script execution failed: %v", err)
	}

	var output, errorOutput []string
	for _, entry := range res.Log {
		if entry.Type == ScriptError {
			errorOutput = append(errorOutput, entry.Output)
		} else {
			output = append(output, entry.Output)
		}
	}
	if res.CommandResult != "" {
		output = append(output, res.CommandResult)
	}
	out := strings.Join(output, "\n")
	errOut := strings.Join(errorOutput, "\n")

	if !res.Success {
		resp := protocol.Response{
			"success": false,
			"error":   failureMessage(res, errOut),
		}
		if out != "" {
			resp["output"] = out
		}
		return resp
	}

	resp := protocol.Response{
		"success": true,
		"output":  out,
	}
	if errOut != "" {
		resp["error_output"] = errOut
	}
	return resp
}

func failureMessage(res ScriptResult, errorOutput string) string {
	switch {
	case res.CommandResult != "":
		return res.CommandResult
	case errorOutput != "":
		return errorOutput
	default:
		return "Script execution failed"
	}
}
