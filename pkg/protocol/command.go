package protocol

// Command is the request body published on edbridge.commands for the NATS transport.
type Command struct {
	Command   string         `json:"command"`
	Params    map[string]any `json:"params"`
	Source    string         `json:"source"`
	Signature string         `json:"signature,omitempty"`
}
