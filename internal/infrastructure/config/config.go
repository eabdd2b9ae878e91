package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the optional YAML config file read by Load.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	Server     ServerConfig     `koanf:"server"`
	Redis      RedisConfig      `koanf:"redis"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	ZeroTrust  ZeroTrustConfig  `koanf:"zero_trust"`
	LLM        LLMConfig        `koanf:"llm"`
	Assessment AssessmentConfig `koanf:"assessment"`
	Tools      ToolsConfig      `koanf:"tools"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type RedisConfig struct {
	URL          string        `koanf:"url" validate:"required"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type TelemetryConfig struct {
	Enabled       bool          `koanf:"enabled"`
	ServiceName   string        `koanf:"service_name"`
	OTLPEndpoint  string        `koanf:"otlp_endpoint"`
	SamplingRate  float64       `koanf:"sampling_rate" validate:"min=0,max=1"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
	BatchTimeout  time.Duration `koanf:"batch_timeout"`
}

// ZeroTrustConfig points at the identity platform API.
type ZeroTrustConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	Timeout      time.Duration `koanf:"timeout"`
	RateLimitRPS int           `koanf:"rate_limit_rps" validate:"min=1"`
	PageSize     int           `koanf:"page_size" validate:"min=1"`
	MaxPages     int           `koanf:"max_pages" validate:"min=1"`
	MaxRetries   int           `koanf:"max_retries" validate:"min=0"`
	AITypeID     int           `koanf:"ai_type_id"`
}

type LLMConfig struct {
	BaseURL      string        `koanf:"base_url"`
	APIKey       string        `koanf:"api_key"`
	Model        string        `koanf:"model" validate:"required"`
	MaxTokens    int           `koanf:"max_tokens" validate:"min=1"`
	Timeout      time.Duration `koanf:"timeout"`
	Stream       bool          `koanf:"stream"`
	HistoryTurns int           `koanf:"history_turns" validate:"min=0"`
}

type AssessmentConfig struct {
	LookbackDays    int           `koanf:"lookback_days" validate:"min=1"`
	Timezone        string        `koanf:"timezone"`
	SyntheticTrends bool          `koanf:"synthetic_trends"`
	HistoryLimit    int           `koanf:"history_limit" validate:"min=1"`
	AuditLimit      int           `koanf:"audit_limit" validate:"min=1"`
	Accounts        []string      `koanf:"accounts"`
	Interval        time.Duration `koanf:"interval"`
	AINamePatterns  []string      `koanf:"ai_name_patterns"`
}

type ToolsConfig struct {
	FetchTimeout    time.Duration `koanf:"fetch_timeout"`
	MaxContentChars int           `koanf:"max_content_chars" validate:"min=1"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"min=1"`
	// AllowPrivateHosts lets the fetch tool reach loopback, private and
	// link-local addresses.
	AllowPrivateHosts bool `koanf:"allow_private_hosts"`
}

// Location resolves the report-local time zone, falling back to UTC.
func (a AssessmentConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            9100,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "shadow-ai-assessor",
			OTLPEndpoint:  "localhost:4317",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
			BatchTimeout:  5 * time.Second,
		},
		ZeroTrust: ZeroTrustConfig{
			BaseURL:      "https://api.cloudflare.com/client/v4",
			Timeout:      30 * time.Second,
			RateLimitRPS: 4,
			PageSize:     1000,
			MaxPages:     20,
			MaxRetries:   2,
			AITypeID:     25,
		},
		LLM: LLMConfig{
			Model:        "gpt-4o-mini",
			MaxTokens:    16000,
			Timeout:      90 * time.Second,
			HistoryTurns: 10,
		},
		Assessment: AssessmentConfig{
			LookbackDays:    30,
			Timezone:        "UTC",
			SyntheticTrends: true,
			HistoryLimit:    50,
			AuditLimit:      500,
			Interval:        24 * time.Hour,
		},
		Tools: ToolsConfig{
			FetchTimeout:    10 * time.Second,
			MaxContentChars: 4000,
			MaxBodyBytes:    2 << 20,
		},
	}
}

// Load reads defaults, then DefaultPath if present, then SAI_ environment
// variables. A double underscore separates nesting levels, so
// SAI_LLM__API_KEY sets llm.api_key.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("SAI_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "SAI_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
