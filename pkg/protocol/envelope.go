package protocol

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the canonical shape written back to transport clients:
// {status: "success", result: {...}} or {status: "error", error: "...", details: {...}}.
type Envelope struct {
	RequestID string         `json:"request_id,omitempty"`
	Status    string         `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// OK reports whether the envelope is a success.
func (e Envelope) OK() bool { return e.Status == StatusSuccess }

// ErrorEnvelope builds an error envelope with no details.
func ErrorEnvelope(msg string) Envelope {
	return Envelope{Status: StatusError, Error: msg}
}

// NewEnvelope wraps a handler response. Error responses keep their extra
// fields (for example script output) under details.
func NewEnvelope(resp Response) Envelope {
	if resp.IsError() {
		env := Envelope{Status: StatusError, Error: resp.ErrorMessage()}
		for k, v := range resp {
			if k == "error" {
				continue
			}
			if env.Details == nil {
				env.Details = make(map[string]any)
			}
			env.Details[k] = v
		}
		return env
	}
	result := map[string]any(resp)
	if result == nil {
		result = map[string]any{}
	}
	return Envelope{Status: StatusSuccess, Result: result}
}

// Canonicalize normalizes a decoded reply from any bridge implementation.
// It accepts the canonical envelope, the legacy {"success": false, ...} shape
// and bare result objects.
func Canonicalize(raw map[string]any) Envelope {
	if raw == nil {
		return ErrorEnvelope("No response from editor")
	}
	switch raw["status"] {
	case StatusError:
		env := Envelope{Status: StatusError, Error: firstString(raw, "error", "message")}
		if env.Error == "" {
			env.Error = "Unknown editor error"
		}
		if details, ok := raw["details"].(map[string]any); ok {
			env.Details = details
		}
		env.RequestID, _ = raw["request_id"].(string)
		return env
	case StatusSuccess:
		env := Envelope{Status: StatusSuccess}
		if result, ok := raw["result"].(map[string]any); ok {
			env.Result = result
		} else {
			env.Result = map[string]any{}
		}
		env.RequestID, _ = raw["request_id"].(string)
		return env
	}

	if ok, isBool := raw["success"].(bool); isBool && !ok {
		msg := firstString(raw, "error", "message")
		if msg == "" {
			msg = "Unknown editor error"
		}
		env := Envelope{Status: StatusError, Error: msg}
		for k, v := range raw {
			if k == "error" || k == "message" || k == "success" {
				continue
			}
			if env.Details == nil {
				env.Details = make(map[string]any)
			}
			env.Details[k] = v
		}
		return env
	}
	return NewEnvelope(Response(raw))
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
