package mcp

import (
	"time"

	"github.com/spf13/viper"

	"github.com/sekia-ai/edbridge/internal/secrets"
	"github.com/sekia-ai/edbridge/pkg/sockpath"
)

// Transport names accepted in bridge.transport.
const (
	TransportTCP  = "tcp"
	TransportNATS = "nats"
)

// Config holds all configuration for the MCP server.
type Config struct {
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
	Snippets SnippetConfig  `mapstructure:"snippets"`
	Security SecurityConfig `mapstructure:"security"`
}

// BridgeConfig selects how tool calls reach edbridged.
type BridgeConfig struct {
	Transport string        `mapstructure:"transport"`
	TCPAddr   string        `mapstructure:"tcp_addr"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// DaemonConfig holds settings for connecting to the edbridged control API.
type DaemonConfig struct {
	Socket string `mapstructure:"socket"`
}

// SnippetConfig points at extra snippets. Built-ins are always available.
type SnippetConfig struct {
	Dir             string `mapstructure:"dir"`
	VerifyIntegrity bool   `mapstructure:"verify_integrity"`
}

// SecurityConfig holds the command signing secret for the NATS transport.
type SecurityConfig struct {
	CommandSecret string `mapstructure:"command_secret"`
}

// LoadConfig reads the MCP server configuration from file, env vars, and defaults.
func LoadConfig(cfgFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("bridge.transport", TransportTCP)
	v.SetDefault("bridge.tcp_addr", "127.0.0.1:55557")
	v.SetDefault("bridge.timeout", 30*time.Second)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("daemon.socket", sockpath.DefaultSocketPath())

	v.SetConfigType("toml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("edbridge-mcp")
		v.AddConfigPath("/etc/edbridge")
		v.AddConfigPath("$HOME/.config/edbridge")
		v.AddConfigPath(".")
	}

	v.BindEnv("bridge.transport", "EDBRIDGE_TRANSPORT")
	v.BindEnv("bridge.tcp_addr", "EDBRIDGE_TCP_ADDR")
	v.BindEnv("nats.url", "EDBRIDGE_NATS_URL")
	v.BindEnv("nats.token", "EDBRIDGE_NATS_TOKEN")
	v.BindEnv("daemon.socket", "EDBRIDGE_DAEMON_SOCKET")
	v.BindEnv("security.command_secret", "EDBRIDGE_COMMAND_SECRET")

	_ = v.ReadInConfig() // config file is optional

	if err := secrets.DecryptConfig(v); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
