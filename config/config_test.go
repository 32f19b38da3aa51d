package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTemp(t, "config.json", `{
		"app_name": "TestApp",
		"listen_ip": "127.0.0.1",
		"listen_port": 9090,
		"session_key": "test-session-key",
		"storage": "sqlite",
		"allowed_origins": ["https://bamikavision.com"]
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "TestApp", cfg.AppName)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "test-session-key", cfg.SessionKey)
	assert.Equal(t, "sqlite", cfg.Storage)
	assert.Equal(t, []string{"https://bamikavision.com"}, cfg.AllowedOrigins)
	// Unset fields keep their defaults.
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 5, cfg.MinMessageLength)
	assert.Equal(t, DefaultAdminUsername, cfg.AdminUsername)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
app_name: YAMLApp
listen_port: 7070
session_key: yaml-key
session_ttl_hours: 2
captcha_enabled: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "YAMLApp", cfg.AppName)
	assert.Equal(t, 7070, cfg.ListenPort)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL())
	assert.True(t, cfg.CaptchaEnabled)
}

func TestLoadConfigInvalidPath(t *testing.T) {
	_, err := LoadConfig("non-existent-path.json")
	assert.Error(t, err)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := writeTemp(t, "invalid_config.json", `{ "invalid": json }`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigGeneratesSessionKey(t *testing.T) {
	path := writeTemp(t, "config.json", `{"session_key": "CHANGE_ME_IN_PRODUCTION"}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.NotEqual(t, placeholderSessionKey, cfg.SessionKey)
	assert.Len(t, cfg.SessionKey, 64)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BAMIKA_SESSION_KEY", "from-env")
	t.Setenv("BAMIKA_STORAGE", "sqlite")
	t.Setenv("BAMIKA_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PORT", "8181")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SessionKey)
	assert.Equal(t, "sqlite", cfg.Storage)
	assert.Equal(t, 8181, cfg.ListenPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestValidateRejectsUnknownStorage(t *testing.T) {
	cfg := Default()
	cfg.Storage = "redis"
	assert.Error(t, cfg.Validate())
}

func TestMailEnabled(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.MailEnabled())

	cfg.MailgunDomain = "mg.example.com"
	cfg.MailgunAPIKey = "key"
	cfg.MailFrom = "site@example.com"
	cfg.MailTo = "contact@example.com"
	assert.True(t, cfg.MailEnabled())
}
