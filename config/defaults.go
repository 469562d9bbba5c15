package config

import "time"

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:        "https://api.kenwei-aigc.com",
			RequestTimeout: 60 * time.Second,
			ChatEndpoints: []string{
				"/v1/chat/completions",
				"/api/v1/chat/completions",
			},
			UploadEndpoints: []string{
				"/v1/files/upload",
				"/api/v1/files/upload",
				"/v1/upload",
			},
			PollInterval: 5 * time.Second,
			WaitBudget:   8 * time.Minute,
			PollCacheTTL: 0,
		},
		RateLimit: RateLimitConfig{
			RPS:   20,
			Burst: 40,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
