// Package snippets manages the Lua script snippets that back convenience
// tools such as selection handling. Snippets run on the editor through
// exec_editor_python and report back by printing a JSON status line.
package snippets

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// Param documents one snippet parameter.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Snippet is one loaded script.
type Snippet struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params,omitempty"`
	// Origin is "builtin" or the file the snippet was loaded from.
	Origin string `json:"origin"`
	Source string `json:"-"`
}

// Parse reads the header comments of a snippet. The first plain comment line
// is the description; "-- @param name type [required] text" lines declare
// parameters.
func Parse(name, origin, source string) Snippet {
	s := Snippet{Name: name, Origin: origin, Source: source}
	sc := bufio.NewScanner(strings.NewReader(source))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "--") {
			break
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "--"))
		if rest, ok := strings.CutPrefix(line, "@param "); ok {
			fields := strings.Fields(rest)
			if len(fields) < 2 {
				continue
			}
			p := Param{Name: fields[0], Type: fields[1]}
			fields = fields[2:]
			if len(fields) > 0 && fields[0] == "required" {
				p.Required = true
				fields = fields[1:]
			}
			p.Description = strings.Join(fields, " ")
			s.Params = append(s.Params, p)
			continue
		}
		if s.Description == "" && line != "" {
			s.Description = line
		}
	}
	return s
}

// Render returns the snippet source prefixed with a PARAMS global decoded
// from params.
func Render(s Snippet, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	for _, p := range s.Params {
		if _, ok := params[p.Name]; p.Required && !ok {
			return "", fmt.Errorf("missing required parameter %q", p.Name)
		}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return "PARAMS = editor.json_decode(" + longString(string(data)) + ")\n" + s.Source, nil
}

// longString quotes s as a Lua long bracket string whose level does not
// appear in s. Level zero is never used since "[[" inside it is an error.
func longString(s string) string {
	level := "="
	for strings.Contains(s, "]"+level+"]") {
		level += "="
	}
	return "[" + level + "[" + s + "]" + level + "]"
}

// ExtractResult finds the last stdout line that is a JSON object with a
// status field and canonicalizes it.
func ExtractResult(output string) (protocol.Envelope, bool) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			continue
		}
		if _, ok := m["status"].(string); !ok {
			continue
		}
		return protocol.Canonicalize(m), true
	}
	return protocol.Envelope{}, false
}
