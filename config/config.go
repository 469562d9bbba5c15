// Package config provides unified configuration loading for the gateway.
// Priority: defaults → YAML file → environment variables.
package config

import "time"

// Config is the complete gateway configuration.
type Config struct {
	// Server HTTP server settings
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Upstream settings for the asynchronous job provider
	Upstream UpstreamConfig `yaml:"upstream" env:"UPSTREAM"`

	// RateLimit per-IP request throttling
	RateLimit RateLimitConfig `yaml:"rate_limit" env:"RATE_LIMIT"`

	// Log logging settings
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Listen address, e.g. ":8080"
	Addr string `yaml:"addr" env:"ADDR"`
	// Metrics listen address; empty disables the metrics server
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	// Read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout; must exceed the wait budget so synchronous surfaces can finish
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Idle timeout
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// UpstreamConfig holds settings for the upstream job provider.
type UpstreamConfig struct {
	// Base URL of the upstream API
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Per-call HTTP timeout
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	// Candidate chat-completion endpoints, tried in order
	ChatEndpoints []string `yaml:"chat_endpoints" env:"CHAT_ENDPOINTS"`
	// Candidate file-upload endpoints, tried in order
	UploadEndpoints []string `yaml:"upload_endpoints" env:"UPLOAD_ENDPOINTS"`
	// Candidate job-creation routes per job family, tried in order; families
	// left out keep the client's defaults
	CreatePaths map[string][]string `yaml:"create_paths"`
	// Poll interval for the synchronous wait engine
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	// Overall wall-clock budget for a synchronous wait
	WaitBudget time.Duration `yaml:"wait_budget" env:"WAIT_BUDGET"`
	// TTL for coalescing concurrent polls of one job; 0 disables coalescing
	PollCacheTTL time.Duration `yaml:"poll_cache_ttl" env:"POLL_CACHE_TTL"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Requests per second per client IP
	RPS float64 `yaml:"rps" env:"RPS"`
	// Burst size
	Burst int `yaml:"burst" env:"BURST"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format string `yaml:"format" env:"FORMAT"`
}
