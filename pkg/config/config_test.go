package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
storage:
  backend: memory
pipeline:
  symbols: [AAPL, MSFT]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesPipelineDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.MaxStackSize != 5 {
		t.Fatalf("max_stack_size = %d, want 5", cfg.Pipeline.MaxStackSize)
	}
	if cfg.Pipeline.Overlap != time.Minute {
		t.Fatalf("overlap = %v, want 1m", cfg.Pipeline.Overlap)
	}
	if cfg.Pipeline.DefaultLookback != 24*time.Hour {
		t.Fatalf("default_lookback = %v, want 24h", cfg.Pipeline.DefaultLookback)
	}
	if len(cfg.Pipeline.Sources) != 2 {
		t.Fatalf("sources = %v, want finnhub and polygon", cfg.Pipeline.Sources)
	}
}

func TestLoadRejectsMissingSymbols(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
storage:
  backend: memory
`))
	if err == nil {
		t.Fatal("expected error for empty symbols")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
storage:
  backend: postgres
pipeline:
  symbols: [AAPL]
`))
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadRejectsEnabledProviderWithoutKey(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
storage:
  backend: memory
providers:
  finnhub:
    enabled: true
pipeline:
  symbols: [AAPL]
  sources: [finnhub]
`))
	if err == nil {
		t.Fatal("expected error for enabled provider without api key")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "TSLA,NVDA")
	t.Setenv("FINNHUB_API_KEY", "k123")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Pipeline.Symbols) != 2 || cfg.Pipeline.Symbols[0] != "TSLA" {
		t.Fatalf("symbols = %v, want [TSLA NVDA]", cfg.Pipeline.Symbols)
	}
	if cfg.Providers.Finnhub.APIKey != "k123" {
		t.Fatalf("api key not overridden")
	}
}
