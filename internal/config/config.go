package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all console configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port        int      `env:"PORT" envDefault:"8787"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// Remote API
	APIURL string `env:"API_URL" envDefault:"http://localhost:8000/api"`

	// HTTP client
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	// Resilience
	MaxRetries     int           `env:"MAX_RETRIES" envDefault:"3"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"100ms"`

	// Cache
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Onboarding
	SchedulePollInterval time.Duration `env:"SCHEDULE_POLL_INTERVAL" envDefault:"5s"`
	SchedulingURL        string        `env:"SCHEDULING_URL"`
	ContractURL          string        `env:"CONTRACT_URL"`
	OpenerCommand        string        `env:"OPENER_COMMAND"`

	// Observability
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Identity provider (Supabase GoTrue)
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`
	SessionFile     string `env:"SESSION_FILE"`

	// Dev mode enables the simulation endpoints.
	DevMode bool `env:"DEV_MODE" envDefault:"false"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")
	return &cfg, nil
}

// Validate reports every missing or out-of-range value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.APIURL == "" {
		errs = append(errs, errors.New("API_URL is required"))
	}
	if c.SupabaseURL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	}
	if c.SupabaseAnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_ANON_KEY is required"))
	}
	if c.SchedulingURL == "" {
		errs = append(errs, errors.New("SCHEDULING_URL is required"))
	}
	if c.ContractURL == "" {
		errs = append(errs, errors.New("CONTRACT_URL is required"))
	}
	if c.SchedulePollInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULE_POLL_INTERVAL must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("MAX_RETRIES must not be negative"))
	}
	return errors.Join(errs...)
}
