package protocol

import "time"

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	NATSRunning     bool      `json:"nats_running"`
	StartedAt       time.Time `json:"started_at"`
	RequestsHandled int64     `json:"requests_handled"`
	Errors          int64     `json:"errors"`
	LastCommand     string    `json:"last_command,omitempty"`
	LastCommandAt   time.Time `json:"last_command_at,omitempty"`
	CurrentLevel    string    `json:"current_level,omitempty"`
	ActorCount      int       `json:"actor_count"`
	StoredEvents    uint64    `json:"stored_events"`
}

// CommandInfo is one entry in the GET /api/v1/commands response.
type CommandInfo struct {
	Name       string `json:"name"`
	Deprecated bool   `json:"deprecated,omitempty"`
	AliasOf    string `json:"alias_of,omitempty"`
	ReadOnly   bool   `json:"read_only,omitempty"`
}

// CommandsResponse is returned by GET /api/v1/commands.
type CommandsResponse struct {
	Commands []CommandInfo `json:"commands"`
}

// SnippetInfo is one entry in the GET /api/v1/snippets response.
type SnippetInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Params      []string `json:"params,omitempty"`
	Origin      string   `json:"origin"`
}

// SnippetsResponse is returned by GET /api/v1/snippets.
type SnippetsResponse struct {
	Snippets []SnippetInfo `json:"snippets"`
}
