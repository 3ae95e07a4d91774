package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/sekia-ai/edbridge/internal/secrets"
	"github.com/sekia-ai/edbridge/internal/transport"
	"github.com/sekia-ai/edbridge/pkg/sockpath"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Editor   EditorConfig   `mapstructure:"editor"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	TCP      TCPConfig      `mapstructure:"tcp"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Snippets SnippetConfig  `mapstructure:"snippets"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig holds control socket settings.
type ServerConfig struct {
	Socket string `mapstructure:"socket"`
}

// EditorConfig configures the simulated editor host.
type EditorConfig struct {
	StorePath        string        `mapstructure:"store_path"` // empty keeps packages in memory
	StartLevel       string        `mapstructure:"start_level"`
	Headless         bool          `mapstructure:"headless"`
	ViewportWidth    int           `mapstructure:"viewport_width"`
	ViewportHeight   int           `mapstructure:"viewport_height"`
	ScriptingEnabled bool          `mapstructure:"scripting_enabled"`
	ScriptTimeout    time.Duration `mapstructure:"script_timeout"`
}

// BridgeConfig holds command execution settings.
type BridgeConfig struct {
	QueueSize      int           `mapstructure:"queue_size"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// TCPConfig holds the JSON-over-TCP transport settings.
type TCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// HTTPConfig holds the WebSocket and event feed listener. Empty Listen disables it.
type HTTPConfig struct {
	Listen   string `mapstructure:"listen"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"` // #nosec G117 -- config deserialization, not hardcoded
}

// NATSConfig holds embedded NATS settings.
type NATSConfig struct {
	Embedded    bool          `mapstructure:"embedded"`
	DataDir     string        `mapstructure:"data_dir"`
	Host        string        `mapstructure:"host"` // empty = in-process only
	Port        int           `mapstructure:"port"`
	Token       string        `mapstructure:"token"`
	Events      bool          `mapstructure:"events"`
	EventMaxAge time.Duration `mapstructure:"event_max_age"`
}

// SnippetConfig holds the script snippet library settings.
type SnippetConfig struct {
	Dir             string `mapstructure:"dir"`
	HotReload       bool   `mapstructure:"hot_reload"`
	VerifyIntegrity bool   `mapstructure:"verify_integrity"`
}

// SecurityConfig holds application-level security settings.
type SecurityConfig struct {
	CommandSecret string `mapstructure:"command_secret"`
}

// LoadConfig reads configuration from file, env and defaults, then decrypts
// ENC[...] values.
func LoadConfig(cfgFile string) (Config, error) {
	v := viper.New()

	homeDir, _ := os.UserHomeDir()
	v.SetDefault("server.socket", sockpath.DefaultSocketPath())

	v.SetDefault("editor.start_level", "/Game/Maps/Main")
	v.SetDefault("editor.headless", false)
	v.SetDefault("editor.viewport_width", 640)
	v.SetDefault("editor.viewport_height", 360)
	v.SetDefault("editor.scripting_enabled", true)
	v.SetDefault("editor.script_timeout", 10*time.Second)

	v.SetDefault("bridge.queue_size", 64)
	v.SetDefault("bridge.command_timeout", transport.DefaultCommandTimeout)

	v.SetDefault("tcp.enabled", true)
	v.SetDefault("tcp.listen", transport.DefaultTCPAddr)

	v.SetDefault("nats.embedded", true)
	v.SetDefault("nats.data_dir", filepath.Join(homeDir, ".local", "share", "edbridge", "nats"))
	v.SetDefault("nats.events", true)
	v.SetDefault("nats.event_max_age", 24*time.Hour)

	v.SetDefault("snippets.dir", filepath.Join(homeDir, ".config", "edbridge", "snippets"))
	v.SetDefault("snippets.hot_reload", true)
	v.SetDefault("snippets.verify_integrity", false)

	v.SetConfigType("toml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("edbridge")
		v.AddConfigPath("/etc/edbridge")
		v.AddConfigPath("$HOME/.config/edbridge")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("EDBRIDGE")
	v.AutomaticEnv()

	v.BindEnv("nats.token", "EDBRIDGE_NATS_TOKEN")
	v.BindEnv("http.username", "EDBRIDGE_HTTP_USERNAME")
	v.BindEnv("http.password", "EDBRIDGE_HTTP_PASSWORD")
	v.BindEnv("security.command_secret", "EDBRIDGE_COMMAND_SECRET")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := secrets.DecryptConfig(v); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
