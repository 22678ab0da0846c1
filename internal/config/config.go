// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/rp2-ai/rp2-ai-helper/internal/ollama"
	"github.com/rp2-ai/rp2-ai-helper/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rp2-ai-helper configuration.
type Config struct {
	Ollama OllamaConfig `toml:"ollama"`
	Panel  PanelConfig  `toml:"panel"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// OllamaConfig configures the model server connection.
type OllamaConfig struct {
	URL       string        `toml:"url"`
	Model     string        `toml:"model"`
	MaxTokens int           `toml:"max_tokens"`
	Timeout   time.Duration `toml:"timeout"` // health check only
}

// PanelConfig configures every opened panel.
type PanelConfig struct {
	Title string `toml:"title"`

	// Overlap is "reject" or "replace"
	Overlap string `toml:"overlap"`

	StripThinking        bool `toml:"strip_thinking"`
	ThinkingAcrossChunks bool `toml:"thinking_across_chunks"`
}

// ServerConfig configures the webview server.
type ServerConfig struct {
	Addr              string  `toml:"addr"`
	MessagesPerSecond float64 `toml:"messages_per_second"`
	Burst             int     `toml:"burst"`
}

// LogConfig configures logging. Logs never go to stdout.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console or json
	File   string `toml:"file"`   // empty means stderr
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:       ollama.DefaultBaseURL,
			Model:     ollama.DefaultModel,
			MaxTokens: ollama.DefaultMaxTokens,
			Timeout:   ollama.DefaultTimeout,
		},
		Panel: PanelConfig{
			Title:         "RP2 AI Helper Panel",
			Overlap:       "reject",
			StripThinking: true,
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8765",
			MessagesPerSecond: 5,
			Burst:             10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ClientConfig returns the ollama client settings.
func (c *Config) ClientConfig() *ollama.ClientConfig {
	return &ollama.ClientConfig{
		BaseURL:              strings.TrimRight(c.Ollama.URL, "/"),
		Model:                c.Ollama.Model,
		MaxTokens:            c.Ollama.MaxTokens,
		Timeout:              c.Ollama.Timeout,
		KeepThinking:         !c.Panel.StripThinking,
		ThinkingAcrossChunks: c.Panel.ThinkingAcrossChunks,
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rp2-ai-helper configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rp2-ai-helper"), nil
}

// ConfigPath returns the path to the default TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file at path (the default path when empty), then
// .env files, then environment overrides, and validates the result.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		defaultPath, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := LoadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes the TOML file at path over cfg. Keys the file does not
// set keep their current values; unknown keys are an error.
func LoadTOML(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads .env from the working directory and from dir. Variables
// already set in the environment win; missing files are skipped.
func LoadDotEnv(dir string) error {
	for _, p := range []string{".env", filepath.Join(dir, ".env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg as TOML to path with 0600 permissions.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# rp2-ai-helper configuration file\n")
	buf.WriteString("# Environment variables RP2_* override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// Environment variable names.
const (
	EnvModel      = "RP2_MODEL"
	EnvOllamaURL  = "RP2_OLLAMA_URL"
	EnvMaxTokens  = "RP2_MAX_TOKENS"
	EnvLogLevel   = "RP2_LOG_LEVEL"
	EnvListenAddr = "RP2_LISTEN_ADDR"
	EnvOverlap    = "RP2_OVERLAP"
)

// ApplyEnvOverrides applies RP2_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	if model := os.Getenv(EnvModel); model != "" {
		c.Ollama.Model = model
	}
	if u := os.Getenv(EnvOllamaURL); u != "" {
		c.Ollama.URL = u
	}
	if v := os.Getenv(EnvMaxTokens); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", EnvMaxTokens, v)
		}
		c.Ollama.MaxTokens = n
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
	if addr := os.Getenv(EnvListenAddr); addr != "" {
		c.Server.Addr = addr
	}
	if overlap := os.Getenv(EnvOverlap); overlap != "" {
		c.Panel.Overlap = overlap
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every field and returns all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.Ollama.URL); err != nil {
		add("ollama.url", "invalid URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("ollama.url", "scheme must be http or https, got %q", u.Scheme)
	} else if u.Host == "" {
		add("ollama.url", "missing host")
	}
	if strings.TrimSpace(c.Ollama.Model) == "" {
		add("ollama.model", "must not be empty")
	}
	if c.Ollama.MaxTokens <= 0 {
		add("ollama.max_tokens", "must be positive, got %d", c.Ollama.MaxTokens)
	}
	if c.Ollama.Timeout <= 0 {
		add("ollama.timeout", "must be positive, got %s", c.Ollama.Timeout)
	}

	switch strings.ToLower(c.Panel.Overlap) {
	case "reject", "replace":
	default:
		add("panel.overlap", "invalid policy '%s', must be one of: reject, replace", c.Panel.Overlap)
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		add("server.addr", "invalid listen address: %v", err)
	}
	if c.Server.MessagesPerSecond <= 0 {
		add("server.messages_per_second", "must be positive")
	}
	if c.Server.Burst < 1 {
		add("server.burst", "must be at least 1")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "unknown level '%s'", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		add("log.format", "invalid format '%s', must be one of: console, json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
