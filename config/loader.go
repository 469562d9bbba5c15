package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration with defaults → YAML file → env overrides.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{envPrefix: "AIGC"}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a config validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	l.applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

// applyEnv overrides config fields from environment variables.
func (l *Loader) applyEnv(cfg *Config) {
	l.envString("SERVER_ADDR", &cfg.Server.Addr)
	l.envString("SERVER_METRICS_ADDR", &cfg.Server.MetricsAddr)
	l.envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	l.envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	l.envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	l.envString("UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	l.envDuration("UPSTREAM_REQUEST_TIMEOUT", &cfg.Upstream.RequestTimeout)
	l.envStrings("UPSTREAM_CHAT_ENDPOINTS", &cfg.Upstream.ChatEndpoints)
	l.envStrings("UPSTREAM_UPLOAD_ENDPOINTS", &cfg.Upstream.UploadEndpoints)
	l.envDuration("UPSTREAM_POLL_INTERVAL", &cfg.Upstream.PollInterval)
	l.envDuration("UPSTREAM_WAIT_BUDGET", &cfg.Upstream.WaitBudget)
	l.envDuration("UPSTREAM_POLL_CACHE_TTL", &cfg.Upstream.PollCacheTTL)

	l.envFloat("RATE_LIMIT_RPS", &cfg.RateLimit.RPS)
	l.envInt("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	l.envString("LOG_LEVEL", &cfg.Log.Level)
	l.envString("LOG_FORMAT", &cfg.Log.Format)
}

func (l *Loader) lookup(key string) (string, bool) {
	return os.LookupEnv(l.envPrefix + "_" + key)
}

func (l *Loader) envString(key string, dst *string) {
	if v, ok := l.lookup(key); ok {
		*dst = v
	}
}

func (l *Loader) envStrings(key string, dst *[]string) {
	if v, ok := l.lookup(key); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

func (l *Loader) envDuration(key string, dst *time.Duration) {
	if v, ok := l.lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func (l *Loader) envInt(key string, dst *int) {
	if v, ok := l.lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (l *Loader) envFloat(key string, dst *float64) {
	if v, ok := l.lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// Validate checks invariants the rest of the gateway relies on.
func Validate(cfg *Config) error {
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if cfg.Upstream.PollInterval <= 0 {
		return fmt.Errorf("upstream.poll_interval must be positive")
	}
	if cfg.Upstream.WaitBudget <= 0 {
		return fmt.Errorf("upstream.wait_budget must be positive")
	}
	if len(cfg.Upstream.ChatEndpoints) == 0 {
		return fmt.Errorf("upstream.chat_endpoints must not be empty")
	}
	if len(cfg.Upstream.UploadEndpoints) == 0 {
		return fmt.Errorf("upstream.upload_endpoints must not be empty")
	}
	return nil
}
