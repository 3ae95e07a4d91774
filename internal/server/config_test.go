package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sekia-ai/edbridge/internal/secrets"
)

func TestLoadConfigFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(secrets.EnvAgeKeyFile, "")

	id, err := secrets.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv(secrets.EnvAgeKey, id.String())
	enc, err := secrets.Encrypt("from-file", id.Recipient())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "edbridge.toml")
	toml := `
[tcp]
listen = "127.0.0.1:6000"

[editor]
script_timeout = "3s"
headless = true

[nats]
token = "` + enc + `"
`
	if err := os.WriteFile(path, []byte(toml), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EDBRIDGE_COMMAND_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TCP.Listen != "127.0.0.1:6000" || !cfg.TCP.Enabled {
		t.Errorf("tcp = %+v", cfg.TCP)
	}
	if cfg.Editor.ScriptTimeout != 3*time.Second || !cfg.Editor.Headless || cfg.Editor.ViewportWidth != 640 {
		t.Errorf("editor = %+v", cfg.Editor)
	}
	if cfg.NATS.Token != "from-file" {
		t.Errorf("nats token = %q", cfg.NATS.Token)
	}
	if cfg.Security.CommandSecret != "from-env" {
		t.Errorf("command secret = %q", cfg.Security.CommandSecret)
	}
	if cfg.Bridge.QueueSize != 64 || !cfg.NATS.Events {
		t.Errorf("defaults not applied: %+v %+v", cfg.Bridge, cfg.NATS)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}
