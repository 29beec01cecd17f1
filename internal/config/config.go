// Package config loads the shim configuration from built-in defaults, an
// optional YAML file and COURTSIDE_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every configuration environment variable. Nested keys
// are separated by a double underscore: COURTSIDE_CHAT__MAX_ATTEMPTS.
const EnvPrefix = "COURTSIDE_"

// DefaultPath is read when no config file is given and silently skipped
// when missing.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Ollama    OllamaConfig    `koanf:"ollama"`
	Chat      ChatConfig      `koanf:"chat"`
	Generate  GenerateConfig  `koanf:"generate"`
	NBA       NBAConfig       `koanf:"nba"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	// Port 0 picks a free port.
	Port int `koanf:"port"`
	// RequestTimeout bounds a whole request; zero means no limit.
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type OllamaConfig struct {
	BaseURL string `koanf:"base_url"`
}

type ChatConfig struct {
	DefaultModel string `koanf:"default_model"`
	// TaskModel answers housekeeping tasks such as title generation.
	TaskModel           string `koanf:"task_model"`
	SystemPrompt        string `koanf:"system_prompt"`
	MaxAttempts         int    `koanf:"max_attempts"`
	ToolErrorPolicy     string `koanf:"tool_error_policy"` // retry, fatal
	CorrectiveReprompt  bool   `koanf:"corrective_reprompt"`
	MaxFrameBytes       int    `koanf:"max_frame_bytes"`
	MaxToolResultTokens int    `koanf:"max_tool_result_tokens"`
}

type GenerateConfig struct {
	PromptPrefix string `koanf:"prompt_prefix"`
}

type NBAConfig struct {
	// Mock serves the built-in dataset instead of calling balldontlie.io.
	Mock    bool          `koanf:"mock"`
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
	// SafeTransport refuses connections to private and loopback addresses.
	SafeTransport bool `koanf:"safe_transport"`
	Debug         bool `koanf:"debug"`
}

type StorageConfig struct {
	Type     string `koanf:"type"` // memory, sqlite, none
	Path     string `koanf:"path"`
	Capacity int    `koanf:"capacity"`
}

// TelemetryConfig controls span export. Spans are written to stderr so they
// stay apart from the request log on stdout.
type TelemetryConfig struct {
	Enabled     bool `koanf:"enabled"`
	PrettyPrint bool `koanf:"pretty_print"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

var defaults = map[string]any{
	"server.port":             11435,
	"server.request_timeout":  "0s",
	"server.shutdown_timeout": "30s",

	"ollama.base_url": "http://localhost:11434",

	"chat.default_model":          "llama3.2:1b",
	"chat.task_model":             "llama3.2:1b",
	"chat.system_prompt":          "You are an assistant with access to tools, if you do not have a tool to deal with the user's request but you think you can answer do it so, if not explain your capabilities",
	"chat.max_attempts":           10,
	"chat.tool_error_policy":      "retry",
	"chat.corrective_reprompt":    false,
	"chat.max_frame_bytes":        4 << 20,
	"chat.max_tool_result_tokens": 2048,

	"generate.prompt_prefix": "Process this request: ",

	"nba.mock":           false,
	"nba.api_key":        "${BALLDONTLIE_API_KEY}",
	"nba.base_url":       "https://api.balldontlie.io/v1",
	"nba.timeout":        "15s",
	"nba.safe_transport": true,
	"nba.debug":          false,

	"storage.type":     "memory",
	"storage.path":     "courtside.db",
	"storage.capacity": 1000,

	"telemetry.enabled":      false,
	"telemetry.pretty_print": false,

	"log.level":  "info",
	"log.format": "json",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the configuration. An empty path reads DefaultPath if present;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// A missing default file is fine; env vars and defaults still apply
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.NBA.APIKey = substituteEnvVars(cfg.NBA.APIKey)
	cfg.Ollama.BaseURL = substituteEnvVars(cfg.Ollama.BaseURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.Server.RequestTimeout < 0:
		return errors.New("server.request_timeout must not be negative")
	case c.Ollama.BaseURL == "":
		return errors.New("ollama.base_url is required")
	case c.Chat.MaxAttempts < 1:
		return fmt.Errorf("chat.max_attempts must be at least 1, got %d", c.Chat.MaxAttempts)
	case c.Chat.ToolErrorPolicy != "retry" && c.Chat.ToolErrorPolicy != "fatal":
		return fmt.Errorf("chat.tool_error_policy must be retry or fatal, got %q", c.Chat.ToolErrorPolicy)
	case c.Chat.MaxToolResultTokens < 0:
		return errors.New("chat.max_tool_result_tokens must not be negative")
	}

	switch c.Storage.Type {
	case "memory", "none":
	case "sqlite":
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("unknown storage.type %q (want memory, sqlite or none)", c.Storage.Type)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// UseMockNBA reports whether the built-in dataset backs the sports
// capabilities, either by request or because no API key is configured.
func (c *NBAConfig) UseMockNBA() bool {
	return c.Mock || c.APIKey == ""
}

// SlogLevel parses the configured level.
func (c *LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", c.Level, err)
	}
	return level, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
