package config

import (
	"log/slog"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.Provider != ProviderGroq {
		t.Errorf("Provider = %q, want %q", cfg.Provider, ProviderGroq)
	}
	if cfg.Model != DefaultGroqModel {
		t.Errorf("Model = %q, want %q", cfg.Model, DefaultGroqModel)
	}
	if cfg.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.APIKey)
	}
	if cfg.MaxRounds != DefaultMaxRounds {
		t.Errorf("MaxRounds = %d, want %d", cfg.MaxRounds, DefaultMaxRounds)
	}
	if cfg.ToolTimeout != DefaultToolTimeout {
		t.Errorf("ToolTimeout = %v, want %v", cfg.ToolTimeout, DefaultToolTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

func TestGeminiProvider(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"SEARCHCHAT_PROVIDER": "Gemini",
		"GEMINI_API_KEY":      "g-key",
		"GROQ_API_KEY":        "ignored",
	}))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if cfg.Model != DefaultGeminiModel {
		t.Errorf("Model = %q, want %q", cfg.Model, DefaultGeminiModel)
	}
	if cfg.APIKey != "g-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "g-key")
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"SEARCHCHAT_ADDR":         "127.0.0.1:9000",
		"SEARCHCHAT_MODEL":        "llama-3.1-8b-instant",
		"SEARCHCHAT_MAX_ROUNDS":   "4",
		"SEARCHCHAT_TOOL_TIMEOUT": "3s",
		"SEARCHCHAT_LOG_LEVEL":    "trace",
		"GROQ_BASE_URL":           "http://localhost:1234/v1/",
		"GROQ_API_KEY":            "  k  ",
	}))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" || cfg.Model != "llama-3.1-8b-instant" {
		t.Errorf("got addr=%q model=%q", cfg.Addr, cfg.Model)
	}
	if cfg.MaxRounds != 4 {
		t.Errorf("MaxRounds = %d, want 4", cfg.MaxRounds)
	}
	if cfg.ToolTimeout != 3*time.Second {
		t.Errorf("ToolTimeout = %v, want 3s", cfg.ToolTimeout)
	}
	if cfg.LogLevel != LevelTrace {
		t.Errorf("LogLevel = %v, want trace", cfg.LogLevel)
	}
	if cfg.GroqBaseURL != "http://localhost:1234/v1" {
		t.Errorf("GroqBaseURL = %q", cfg.GroqBaseURL)
	}
	if cfg.APIKey != "k" {
		t.Errorf("APIKey = %q, want trimmed", cfg.APIKey)
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"provider", map[string]string{"SEARCHCHAT_PROVIDER": "openai"}},
		{"rounds not a number", map[string]string{"SEARCHCHAT_MAX_ROUNDS": "many"}},
		{"rounds zero", map[string]string{"SEARCHCHAT_MAX_ROUNDS": "0"}},
		{"timeout", map[string]string{"SEARCHCHAT_TOOL_TIMEOUT": "soon"}},
		{"log level", map[string]string{"SEARCHCHAT_LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromLookup(lookupFrom(tt.env)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLogValueRedactsKey(t *testing.T) {
	cfg := &Config{APIKey: "secret"}
	for _, attr := range cfg.LogValue().Group() {
		if attr.Value.String() == "secret" {
			t.Fatalf("credential leaked in attr %q", attr.Key)
		}
	}
}
