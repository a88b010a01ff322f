package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	AI      AI      `yaml:"ai"`
	Ingest  Ingest  `yaml:"ingest"`
	Logging Logging `yaml:"logging"`
}

type Storage struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
	// AdminToken gates the /api/admin endpoints when set. Clients send it
	// in the X-Admin-Token header. Empty disables the check.
	AdminToken string `yaml:"admin_token"`
}

type AI struct {
	Provider        string `yaml:"provider"` // openai, anthropic, ollama, none
	OpenAIModel     string `yaml:"openai_model"`
	OpenAIKeyEnv    string `yaml:"openai_api_key_env"`
	AnthropicModel  string `yaml:"anthropic_model"`
	AnthropicKeyEnv string `yaml:"anthropic_api_key_env"`
	OllamaModel     string `yaml:"ollama_model"`
	OllamaURL       string `yaml:"ollama_url"`
	MaxTokens       int    `yaml:"max_tokens"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	Embeddings      bool   `yaml:"embeddings"`
}

type Ingest struct {
	Parser string `yaml:"parser"` // full or simple
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for rulechat.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "rulechat")
}

// DataDir returns the XDG data directory for rulechat.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "rulechat")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/rulechat/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'rulechat init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Server: Server{Port: 8000},
		AI: AI{
			Provider:        "none",
			OpenAIModel:     "gpt-4o-mini",
			OpenAIKeyEnv:    "OPENAI_API_KEY",
			AnthropicModel:  "claude-3-5-haiku-latest",
			AnthropicKeyEnv: "ANTHROPIC_API_KEY",
			OllamaModel:     "qwen2.5:7b",
			OllamaURL:       "http://localhost:11434",
			MaxTokens:       1000,
			TimeoutSeconds:  30,
		},
		Ingest:  Ingest{Parser: "full"},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return DataDir()
}

// DBPath returns the sqlite database path under the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "rulechat.db")
}

// Timeout returns the AI completion timeout as a duration.
func (a AI) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
