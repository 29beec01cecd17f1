package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 11435 {
			t.Errorf("Load() port = %v, want 11435", cfg.Server.Port)
		}
		if cfg.Server.RequestTimeout != 0 || cfg.Server.ShutdownTimeout != 30*time.Second {
			t.Errorf("timeouts = %v / %v", cfg.Server.RequestTimeout, cfg.Server.ShutdownTimeout)
		}
		if cfg.Ollama.BaseURL != "http://localhost:11434" {
			t.Errorf("ollama.base_url = %q", cfg.Ollama.BaseURL)
		}
		if cfg.Chat.MaxAttempts != 10 || cfg.Chat.TaskModel != "llama3.2:1b" || cfg.Chat.ToolErrorPolicy != "retry" {
			t.Errorf("chat = %+v", cfg.Chat)
		}
		if cfg.Generate.PromptPrefix != "Process this request: " {
			t.Errorf("prompt_prefix = %q", cfg.Generate.PromptPrefix)
		}
		if cfg.Storage.Type != "memory" || cfg.Log.Format != "json" {
			t.Errorf("storage = %+v, log = %+v", cfg.Storage, cfg.Log)
		}
		if !cfg.NBA.SafeTransport || cfg.NBA.Timeout != 15*time.Second {
			t.Errorf("nba = %+v", cfg.NBA)
		}
	})

	t.Run("env var port override", func(t *testing.T) {
		t.Setenv("COURTSIDE_SERVER__PORT", "9000")
		t.Setenv("COURTSIDE_CHAT__MAX_ATTEMPTS", "3")
		t.Setenv("COURTSIDE_CHAT__CORRECTIVE_REPROMPT", "true")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("Load() port = %v, want 9000", cfg.Server.Port)
		}
		if cfg.Chat.MaxAttempts != 3 || !cfg.Chat.CorrectiveReprompt {
			t.Errorf("chat = %+v", cfg.Chat)
		}
	})
}

func TestLoad_File(t *testing.T) {
	t.Setenv("TEST_BDL_KEY", "secret-key")
	path := writeConfig(t, `
server:
  port: 8088
  request_timeout: 2m
ollama:
  base_url: http://gpu-box:11434
chat:
  default_model: qwen2.5:7b
  tool_error_policy: fatal
  max_tool_result_tokens: 0
nba:
  api_key: ${TEST_BDL_KEY}
storage:
  type: sqlite
  path: /var/lib/courtside/invocations.db
log:
  level: debug
  format: text
`)

	t.Setenv("COURTSIDE_SERVER__PORT", "8099")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8099 {
		t.Errorf("env should override the file, port = %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 2*time.Minute {
		t.Errorf("request_timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Ollama.BaseURL != "http://gpu-box:11434" || cfg.Chat.DefaultModel != "qwen2.5:7b" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Chat.TaskModel != "llama3.2:1b" {
		t.Errorf("unset keys keep their defaults, task_model = %q", cfg.Chat.TaskModel)
	}
	if cfg.Chat.MaxToolResultTokens != 0 {
		t.Errorf("max_tool_result_tokens = %d", cfg.Chat.MaxToolResultTokens)
	}
	if cfg.NBA.APIKey != "secret-key" || cfg.NBA.UseMockNBA() {
		t.Errorf("nba = %+v", cfg.NBA)
	}
	if level, _ := cfg.Log.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("level = %v", level)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "policy", content: "chat:\n  tool_error_policy: ignore\n", wantErr: "tool_error_policy"},
		{name: "attempts", content: "chat:\n  max_attempts: 0\n", wantErr: "max_attempts"},
		{name: "storage", content: "storage:\n  type: postgres\n", wantErr: "storage.type"},
		{name: "level", content: "log:\n  level: loud\n", wantErr: "log.level"},
		{name: "port", content: "server:\n  port: 70000\n", wantErr: "server.port"},
		{name: "yaml", content: "server: [", wantErr: "load config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestUseMockNBA(t *testing.T) {
	tests := []struct {
		cfg  NBAConfig
		want bool
	}{
		{cfg: NBAConfig{Mock: true, APIKey: "k"}, want: true},
		{cfg: NBAConfig{APIKey: ""}, want: true},
		{cfg: NBAConfig{APIKey: "k"}, want: false},
	}
	for _, tt := range tests {
		if got := tt.cfg.UseMockNBA(); got != tt.want {
			t.Errorf("UseMockNBA(%+v) = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
