package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Upstream.PollInterval)
	assert.Equal(t, 8*time.Minute, cfg.Upstream.WaitBudget)
	assert.Zero(t, cfg.Upstream.PollCacheTTL)
	assert.NotEmpty(t, cfg.Upstream.ChatEndpoints)
	assert.NotEmpty(t, cfg.Upstream.UploadEndpoints)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  addr: ":9999"
upstream:
  base_url: "https://upstream.example.com"
  poll_interval: 250ms
  chat_endpoints:
    - /only/chat
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "https://upstream.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Upstream.PollInterval)
	assert.Equal(t, []string{"/only/chat"}, cfg.Upstream.ChatEndpoints)
	// untouched sections keep defaults
	assert.Equal(t, 8*time.Minute, cfg.Upstream.WaitBudget)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("AIGC_UPSTREAM_BASE_URL", "https://env.example.com")
	t.Setenv("AIGC_UPSTREAM_WAIT_BUDGET", "90s")
	t.Setenv("AIGC_UPSTREAM_CHAT_ENDPOINTS", "/a, /b ,/c")
	t.Setenv("AIGC_RATE_LIMIT_BURST", "7")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Upstream.WaitBudget)
	assert.Equal(t, []string{"/a", "/b", "/c"}, cfg.Upstream.ChatEndpoints)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
}

func TestLoad_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upstream:\n  base_url: \"\"\n"), 0o600))

	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestLoad_CustomValidator(t *testing.T) {
	_, err := NewLoader().WithValidator(func(c *Config) error {
		return os.ErrInvalid
	}).Load()
	assert.ErrorIs(t, err, os.ErrInvalid)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	assert.Error(t, err)
}
