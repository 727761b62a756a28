package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/closepath/internal/config"
)

// noEnv keeps exported credentials on the developer's machine out of tests.
func noEnv(string) string { return "" }

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := config.LoadWithEnv(filepath.Join("..", "..", "configs", "example.yaml"), noEnv)
	if err != nil {
		t.Fatalf("example config: %v", err)
	}
	if cfg.Providers.STT.Name != "browser" {
		t.Errorf("stt = %q, want browser", cfg.Providers.STT.Name)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.yaml")

	cfg, watch, err := loadConfig(missing, false, noEnv)
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if cfg == nil || watch {
		t.Errorf("got cfg=%v watch=%v, want defaults without watching", cfg, watch)
	}
	if cfg != nil && cfg.Providers.LLM.Name != "" {
		t.Errorf("llm = %q, want demo mode without credentials", cfg.Providers.LLM.Name)
	}

	withKey := func(k string) string {
		if k == "ANTHROPIC_API_KEY" {
			return "sk-ant-env"
		}
		return ""
	}
	cfg, _, err = loadConfig(missing, false, withKey)
	if err != nil {
		t.Fatalf("default path with key: %v", err)
	}
	if cfg.Providers.LLM.Name != "anthropic" {
		t.Errorf("llm = %q, want anthropic from the environment", cfg.Providers.LLM.Name)
	}

	if _, _, err := loadConfig(missing, true, noEnv); err == nil {
		t.Error("explicit missing path should fail")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  log_level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadConfig(path, false, noEnv); err == nil {
		t.Error("invalid config should fail even on the default path")
	}
}

func TestBuildProviders(t *testing.T) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	cfg := &config.Config{Providers: config.ProvidersConfig{
		LLM:          config.ProviderEntry{Name: "anthropic", APIKey: "sk-ant-test", Model: "claude-sonnet-4-5"},
		LLMFallbacks: []config.ProviderEntry{{Name: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"}},
		STT:          config.ProviderEntry{Name: "deepgram", APIKey: "dg-test"},
		STTFallbacks: []config.ProviderEntry{{Name: "browser"}},
	}}
	ps, err := buildProviders(cfg, reg)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if ps.LLM == nil || ps.STT == nil || len(ps.LLMFallbacks) != 1 {
		t.Errorf("providers = %+v", ps)
	}
	if len(ps.STTFallbacks) != 1 || ps.STTFallbacks[0].Name != "browser" {
		t.Errorf("stt fallbacks = %+v", ps.STTFallbacks)
	}

	cfg.Providers.STT.Name = "whisper"
	if _, err := buildProviders(cfg, reg); err == nil {
		t.Error("unregistered provider should fail")
	}
}

func TestOptionHelpers(t *testing.T) {
	opts := map[string]any{
		"language":       "en-GB",
		"endpointing_ms": 300,
		"timeout":        "45s",
		"bad":            "soon",
	}
	if got := optString(opts, "language"); got != "en-GB" {
		t.Errorf("optString = %q", got)
	}
	if got := optString(nil, "language"); got != "" {
		t.Errorf("optString(nil) = %q", got)
	}
	if n, ok := optInt(opts, "endpointing_ms"); !ok || n != 300 {
		t.Errorf("optInt = %d, %v", n, ok)
	}
	if _, ok := optInt(opts, "language"); ok {
		t.Error("optInt accepted a string")
	}
	if d := optDuration(opts, "timeout"); d != 45*time.Second {
		t.Errorf("optDuration = %s", d)
	}
	if d := optDuration(opts, "bad"); d != 0 {
		t.Errorf("optDuration(bad) = %s, want 0", d)
	}
}

func TestAnalysisMode(t *testing.T) {
	tests := []struct {
		name     string
		llm      string
		endpoint string
		want     string
	}{
		{"demo", "", "", "demo"},
		{"local llm", "anthropic", "", "local"},
		{"remote wins", "anthropic", "http://analyzer:8080/api/analyze", "remote"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Providers.LLM.Name = tt.llm
			cfg.Analysis.Endpoint = tt.endpoint
			if got := analysisMode(cfg); got != tt.want {
				t.Errorf("analysisMode = %q, want %q", got, tt.want)
			}
		})
	}
}
