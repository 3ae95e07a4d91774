// Package sockpath provides the default Unix socket path of the edbridged
// control API. edbridged, edbridgectl and edbridge-mcp agree on it.
package sockpath

import (
	"os"
	"path/filepath"
)

// DefaultSocketPath prefers $XDG_RUNTIME_DIR/edbridge/edbridged.sock and
// falls back to ~/.config/edbridge/edbridged.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "edbridge", "edbridged.sock")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "edbridge", "edbridged.sock")
}
