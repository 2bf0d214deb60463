package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultServer is the public upstream API. The bare public address serves
// the API under /api; Address appends that suffix.
const DefaultServer = "https://satellite.blockstream.com"

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Sink    SinkConfig    `mapstructure:"sink"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type APIConfig struct {
	Server        string `mapstructure:"server"`
	Port          string `mapstructure:"port"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelaySec int    `mapstructure:"retry_delay_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

type FeedConfig struct {
	Transport       string `mapstructure:"transport"` // "sse" or "websocket"
	ReconnectBaseMs int    `mapstructure:"reconnect_base_ms"`
	ReconnectMaxSec int    `mapstructure:"reconnect_max_sec"`
}

type SinkConfig struct {
	Type string `mapstructure:"type"` // "pipe" or "file"
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("api.server", DefaultServer)
	v.SetDefault("api.timeout_sec", 60)
	v.SetDefault("api.retry_count", 3)
	v.SetDefault("api.retry_delay_sec", 1)
	v.SetDefault("api.rate_per_second", 10)
	v.SetDefault("feed.transport", "sse")
	v.SetDefault("feed.reconnect_base_ms", 500)
	v.SetDefault("feed.reconnect_max_sec", 30)
	v.SetDefault("sink.type", "pipe")
	v.SetDefault("sink.path", "/tmp/blocksat/api")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("SATRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.API.Server == "" {
		return fmt.Errorf("api.server is required")
	}
	switch c.Feed.Transport {
	case "sse", "websocket":
	default:
		return fmt.Errorf("feed.transport must be \"sse\" or \"websocket\", got %q", c.Feed.Transport)
	}
	switch c.Sink.Type {
	case "pipe", "file":
	default:
		return fmt.Errorf("sink.type must be \"pipe\" or \"file\", got %q", c.Sink.Type)
	}
	if c.Sink.Path == "" {
		return fmt.Errorf("sink.path is required")
	}
	if c.Feed.ReconnectBaseMs < 1 {
		return fmt.Errorf("feed.reconnect_base_ms must be >= 1")
	}
	return nil
}

// Address resolves the effective API base URL: explicit port appended when
// set, and the /api path suffix added for the bare public server address.
func (c *APIConfig) Address() string {
	addr := strings.TrimRight(c.Server, "/")
	if c.Port != "" {
		addr = addr + ":" + c.Port
	}
	if addr == DefaultServer {
		addr += "/api"
	}
	return addr
}
