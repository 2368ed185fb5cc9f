// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first when present. Values
// already set in the process environment take precedence over the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LevelTrace is a custom log level for detailed HTTP traffic.
const LevelTrace = slog.Level(-8)

const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

const (
	DefaultAddr         = ":8080"
	DefaultGroqModel    = "llama3-8b-8192"
	DefaultGeminiModel  = "gemini-2.0-flash"
	DefaultGroqBaseURL  = "https://api.groq.com/openai/v1"
	DefaultMaxRounds    = 15
	DefaultToolTimeout  = 15 * time.Second
	defaultLogLevelName = "info"
)

// Config holds all process settings.
type Config struct {
	Addr     string
	Provider string
	Model    string
	// APIKey is the environment-supplied credential for the selected
	// provider. It may be empty; the page then has to supply one.
	APIKey      string
	GroqBaseURL string
	MaxRounds   int
	ToolTimeout time.Duration
	LogLevel    slog.Level
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from the given lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Addr:        get("SEARCHCHAT_ADDR", DefaultAddr),
		Provider:    strings.ToLower(get("SEARCHCHAT_PROVIDER", ProviderGroq)),
		GroqBaseURL: strings.TrimRight(get("GROQ_BASE_URL", DefaultGroqBaseURL), "/"),
	}

	switch cfg.Provider {
	case ProviderGroq:
		cfg.Model = get("SEARCHCHAT_MODEL", DefaultGroqModel)
		cfg.APIKey = get("GROQ_API_KEY", "")
	case ProviderGemini:
		cfg.Model = get("SEARCHCHAT_MODEL", DefaultGeminiModel)
		cfg.APIKey = get("GEMINI_API_KEY", "")
	default:
		return nil, fmt.Errorf("unsupported provider %q: want %q or %q", cfg.Provider, ProviderGroq, ProviderGemini)
	}

	rounds, err := strconv.Atoi(get("SEARCHCHAT_MAX_ROUNDS", strconv.Itoa(DefaultMaxRounds)))
	if err != nil {
		return nil, fmt.Errorf("parsing SEARCHCHAT_MAX_ROUNDS: %w", err)
	}
	if rounds <= 0 {
		return nil, fmt.Errorf("SEARCHCHAT_MAX_ROUNDS must be positive, got %d", rounds)
	}
	cfg.MaxRounds = rounds

	timeout, err := time.ParseDuration(get("SEARCHCHAT_TOOL_TIMEOUT", DefaultToolTimeout.String()))
	if err != nil {
		return nil, fmt.Errorf("parsing SEARCHCHAT_TOOL_TIMEOUT: %w", err)
	}
	cfg.ToolTimeout = timeout

	level, err := ParseLevel(get("SEARCHCHAT_LOG_LEVEL", defaultLogLevelName))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

// ParseLevel maps a level name to a slog level. "trace" enables HTTP dumps.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// LogValue keeps the credential out of structured logs.
func (c *Config) LogValue() slog.Value {
	key := ""
	if c.APIKey != "" {
		key = "redacted"
	}
	return slog.GroupValue(
		slog.String("addr", c.Addr),
		slog.String("provider", c.Provider),
		slog.String("model", c.Model),
		slog.String("apiKey", key),
		slog.Int("maxRounds", c.MaxRounds),
		slog.Duration("toolTimeout", c.ToolTimeout),
		slog.String("logLevel", c.LogLevel.String()),
	)
}
