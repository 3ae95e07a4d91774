package protocol

// Request is one editor command as it arrives over the TCP or WebSocket transports.
// The "type" key matches the wire format used by editor-side bridges.
type Request struct {
	Type      string         `json:"type"`
	Params    map[string]any `json:"params"`
	RequestID string         `json:"request_id,omitempty"`
}

// Response is the raw result object produced by an editor command handler.
// Success responses carry command-specific fields; failures carry a single
// "error" string.
type Response map[string]any

// ErrorResponse builds the uniform {"error": msg} failure object.
func ErrorResponse(msg string) Response {
	return Response{"error": msg}
}

// IsError reports whether r is a failure: it has a string "error" field and
// is not explicitly marked "success": true.
func (r Response) IsError() bool {
	if _, ok := r["error"].(string); !ok {
		return false
	}
	if ok, isBool := r["success"].(bool); isBool && ok {
		return false
	}
	return true
}

// ErrorMessage returns the "error" field, or "" for success responses.
func (r Response) ErrorMessage() string {
	msg, _ := r["error"].(string)
	return msg
}
