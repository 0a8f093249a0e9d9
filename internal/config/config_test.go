package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Helper()
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/visitsched")
	t.Setenv("CODE_ENC_KEY", key)
}

func TestFromEnvDefaults(t *testing.T) {
	validEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "https://api.apitruecaptcha.org/one/gettext", cfg.CaptchaURL)
	assert.Equal(t, "conl", cfg.CaptchaTag)
	assert.Equal(t, 6, cfg.CaptchaLength)
	assert.Equal(t, 200, cfg.MaxOrdersPerPass)
	assert.Len(t, cfg.CodeEncKey, 32)
	assert.False(t, cfg.Headless)
	assert.Empty(t, cfg.MonitorCountries)
}

func TestFromEnvRequiresDatabaseURL(t *testing.T) {
	validEnv(t)
	t.Setenv("DATABASE_URL", "")

	_, err := FromEnv()
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestFromEnvRequiresEncKey(t *testing.T) {
	validEnv(t)
	t.Setenv("CODE_ENC_KEY", "")

	_, err := FromEnv()
	require.ErrorContains(t, err, "CODE_ENC_KEY")
}

func TestFromEnvRejectsShortEncKey(t *testing.T) {
	validEnv(t)
	t.Setenv("CODE_ENC_KEY", base64.StdEncoding.EncodeToString(make([]byte, 16)))

	_, err := FromEnv()
	require.ErrorContains(t, err, "32 bytes")
}

func TestFromEnvParsesMonitorCountries(t *testing.T) {
	validEnv(t)
	t.Setenv("MONITOR_COUNTRIES", "4, 12,41")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []int{4, 12, 41}, cfg.MonitorCountries)
}

func TestFromEnvRejectsBadCountryID(t *testing.T) {
	validEnv(t)
	t.Setenv("MONITOR_COUNTRIES", "4,madrid")

	_, err := FromEnv()
	require.ErrorContains(t, err, "MONITOR_COUNTRIES")
}

func TestRequireSessionKeys(t *testing.T) {
	validEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Error(t, cfg.RequireSessionKeys())

	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	t.Setenv("SESSION_HASH_KEY", key)
	t.Setenv("SESSION_BLOCK_KEY", key)

	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireSessionKeys())
}

func TestRequireCaptchaCreds(t *testing.T) {
	validEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Error(t, cfg.RequireCaptchaCreds())

	t.Setenv("CAPTCHA_USER_ID", "uid")
	t.Setenv("CAPTCHA_API_KEY", "key")

	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireCaptchaCreds())
}
