package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type SchemaSource string

const (
	SchemaSourceBuiltin  SchemaSource = "builtin"
	SchemaSourceFile     SchemaSource = "file"
	SchemaSourcePostgres SchemaSource = "postgres"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Model         ModelConfig
	Loop          LoopConfig
	Schema        SchemaConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type ModelConfig struct {
	BaseURL     string
	APIKey      string
	Name        string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type LoopConfig struct {
	MaxAttempts int
	BestEffort  bool
}

type SchemaConfig struct {
	Source       SchemaSource
	Path         string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLSCRIBE_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLSCRIBE_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "SQLSCRIBE_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCRIBE_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSCRIBE_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSCRIBE_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSCRIBE_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCRIBE_MODEL_BASE_URL", &cfg.Model.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCRIBE_MODEL_API_KEY", &cfg.Model.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCRIBE_MODEL_NAME", &cfg.Model.Name); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SQLSCRIBE_MODEL_TEMPERATURE", &cfg.Model.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSCRIBE_MODEL_MAX_TOKENS", &cfg.Model.MaxTokens); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSCRIBE_MODEL_TIMEOUT", &cfg.Model.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSCRIBE_MAX_ATTEMPTS", &cfg.Loop.MaxAttempts); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSCRIBE_BEST_EFFORT", &cfg.Loop.BestEffort); err != nil {
		return Config{}, err
	}
	if raw, ok := lookup("SQLSCRIBE_SCHEMA_SOURCE"); ok {
		cfg.Schema.Source = SchemaSource(strings.ToLower(strings.TrimSpace(raw)))
	}
	if err := applyString(lookup, "SQLSCRIBE_SCHEMA_FILE", &cfg.Schema.Path); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCRIBE_SCHEMA_DSN", &cfg.Schema.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSCRIBE_SCHEMA_MAX_OPEN_CONNS", &cfg.Schema.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSCRIBE_SCHEMA_MAX_IDLE_CONNS", &cfg.Schema.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSCRIBE_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLSCRIBE_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSCRIBE_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSCRIBE_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Loop.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("SQLSCRIBE_MAX_ATTEMPTS must be positive, got %d", cfg.Loop.MaxAttempts)
	}
	switch cfg.Schema.Source {
	case SchemaSourceBuiltin:
	case SchemaSourceFile:
		if cfg.Schema.Path == "" {
			return Config{}, fmt.Errorf("SQLSCRIBE_SCHEMA_FILE is required for the file schema source")
		}
	case SchemaSourcePostgres:
		if cfg.Schema.DSN == "" {
			return Config{}, fmt.Errorf("SQLSCRIBE_SCHEMA_DSN is required for the postgres schema source")
		}
	default:
		return Config{}, fmt.Errorf("invalid SQLSCRIBE_SCHEMA_SOURCE: %q", cfg.Schema.Source)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlscribe-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		Model: ModelConfig{
			BaseURL:     "http://localhost:11434",
			Name:        "qwen2.5-coder:3b",
			Temperature: 0,
			MaxTokens:   256,
			Timeout:     60 * time.Second,
		},
		Loop: LoopConfig{
			MaxAttempts: 3,
			BestEffort:  false,
		},
		Schema: SchemaConfig{
			Source:       SchemaSourceBuiltin,
			MaxOpenConns: 4,
			MaxIdleConns: 2,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = level
	return nil
}
