package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ClientType selects the transport used to reach an MCP server.
type ClientType string

const (
	ClientTypeSSE            ClientType = "sse"
	ClientTypeStreamableHTTP ClientType = "streamable_http"
	ClientTypeStdio          ClientType = "stdio"
)

// Routing modes.
const (
	RoutingModeLLM     = "llm"
	RoutingModeKeyword = "keyword"
)

// Config holds the application configuration
type Config struct {
	LLM        LLMConfig
	Server     ServerConfig
	Store      StoreConfig
	Weather    WeatherConfig
	Routing    RoutingConfig
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
	LogLevel   string            `mapstructure:"log_level"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig points at the sqlite database holding users, chats and messages.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// WeatherConfig configures the OpenWeatherMap lookup.
type WeatherConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RoutingConfig bounds the supervisor loop and the capability agents.
type RoutingConfig struct {
	Mode          string            `mapstructure:"mode"`
	MaxIterations int               `mapstructure:"max_iterations"`
	MinWords      int               `mapstructure:"min_words"`
	AgentTimeout  time.Duration     `mapstructure:"agent_timeout"`
	MaxToolTurns  int               `mapstructure:"max_tool_turns"`
	Instructions  map[string]string `mapstructure:"instructions"`
}

// MCPServerConfig describes one MCP server whose tools are offered to the agents.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    ClientType        `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	Headers map[string]string `mapstructure:"headers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("store.path", "naviable.db")

	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.base_url", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("weather.timeout", 5*time.Second)
	v.SetDefault("weather.cache_ttl", 10*time.Minute)

	v.SetDefault("routing.mode", RoutingModeLLM)
	v.SetDefault("routing.max_iterations", 6)
	v.SetDefault("routing.min_words", 3)
	v.SetDefault("routing.agent_timeout", 90*time.Second)
	v.SetDefault("routing.max_tool_turns", 5)

	v.SetDefault("log_level", "info")
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"host":      "server.host",
	"port":      "server.port",
	"db":        "store.path",
	"mode":      "routing.mode",
	"model":     "llm.model",
	"log-level": "log_level",
}

// Load reads the YAML file named by CONFIG_PATH, or ./config.yaml when unset.
// A missing default file is not an error; NAVIABLE_* environment variables
// override any key (NAVIABLE_LLM_API_KEY for llm.api_key). Flags in flags
// that were set explicitly take precedence over both.
func Load(flags ...*pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for _, fs := range flags {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
				bindErr = v.BindPFlag(key, f)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	v.SetEnvPrefix("naviable")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the supervisor cannot run with.
func (c *Config) Validate() error {
	switch c.Routing.Mode {
	case RoutingModeLLM, RoutingModeKeyword:
	default:
		return errors.New("routing.mode must be 'llm' or 'keyword'")
	}
	if c.Routing.MaxIterations < 1 {
		return errors.New("routing.max_iterations must be at least 1")
	}
	if c.Routing.MinWords < 0 {
		return errors.New("routing.min_words must not be negative")
	}
	return nil
}

// Addr is the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
