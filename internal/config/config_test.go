package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("parsing default config: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if cfg.AI.Provider != "none" {
		t.Errorf("expected provider none, got %q", cfg.AI.Provider)
	}
	if cfg.AI.OpenAIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("unexpected key env: %q", cfg.AI.OpenAIKeyEnv)
	}
	if cfg.Ingest.Parser != "full" {
		t.Errorf("expected full parser, got %q", cfg.Ingest.Parser)
	}
	if cfg.Server.AdminToken != "" {
		t.Errorf("expected admin token unset by default, got %q", cfg.Server.AdminToken)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := parse([]byte("server:\n  port: 9999\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected override 9999, got %d", cfg.Server.Port)
	}
	if cfg.AI.MaxTokens != 1000 {
		t.Errorf("expected default max tokens, got %d", cfg.AI.MaxTokens)
	}
	if cfg.AI.Timeout() != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.AI.Timeout())
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := parse([]byte(": not yaml [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestResolveConfigPathExplicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveConfigPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Errorf("expected %q, got %q", path, got)
	}

	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected XDG default data dir")
	}

	cfg.Storage.DataDir = "/tmp/rulechat-test"
	if cfg.GetDataDir() != "/tmp/rulechat-test" {
		t.Errorf("expected explicit data dir, got %q", cfg.GetDataDir())
	}
}
