package config

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "", c.CORSProxy)
	assert.False(t, c.DemoMode)
	assert.Equal(t, 10000, c.CDXLimit)
	assert.Equal(t, 5*time.Second, c.FallbackTimeout)
	assert.Equal(t, []string{ProxyAllOrigins, ProxyCorsProxyIO}, c.FallbackProxies)
	assert.Equal(t, "omnidash.db", c.DBPath)
	assert.Equal(t, ":3002", c.BackendAddr)
	assert.Equal(t, DefaultCDXEndpoint, c.CDXEndpoint)
}

func TestApplyEnv(t *testing.T) {
	var c Config
	c.LoadDefaults()

	err := c.ApplyEnv(envFrom(map[string]string{
		"OMNIDASH_CORS_PROXY":   "https://corsproxy.io/?",
		"OMNIDASH_DEMO_MODE":    "true",
		"OMNIDASH_CDX_LIMIT":    "500",
		"OMNIDASH_ACCESS_KEY":   " abc ",
		"PORT":                  "4000",
		"ENCRYPTION_KEY":        "deadbeef",
		"OMNIDASH_DEMO_LATENCY": "0s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://corsproxy.io/?", c.CORSProxy)
	assert.True(t, c.DemoMode)
	assert.Equal(t, 500, c.CDXLimit)
	assert.Equal(t, "abc", c.AccessKey)
	assert.Equal(t, ":4000", c.BackendAddr)
	assert.Equal(t, "deadbeef", c.EncryptionKey)
	assert.Equal(t, time.Duration(0), c.DemoLatency)
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad bool", map[string]string{"OMNIDASH_DEMO_MODE": "maybe"}},
		{"bad int", map[string]string{"OMNIDASH_CDX_LIMIT": "lots"}},
		{"zero concurrency", map[string]string{"OMNIDASH_CONCURRENCY": "0"}},
		{"bad latency", map[string]string{"OMNIDASH_DEMO_LATENCY": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			assert.Error(t, c.ApplyEnv(envFrom(tt.env)))
		})
	}
}

func TestApplySettings_RespectsExplicitValues(t *testing.T) {
	var c Config
	c.LoadDefaults()
	require.NoError(t, c.ApplyEnv(envFrom(map[string]string{"OMNIDASH_CORS_PROXY": "https://env.example/?"})))

	err := c.ApplySettings(map[string]string{
		SettingCORSProxy:   "https://stored.example/?",
		SettingConcurrency: "4",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://env.example/?", c.CORSProxy, "env beats stored setting")
	assert.Equal(t, 4, c.Concurrency)
}

func TestApplySettings_UnknownKey(t *testing.T) {
	var c Config
	c.LoadDefaults()
	assert.Error(t, c.ApplySettings(map[string]string{"colour": "red"}))
}

func TestLoad_FlagsOverrideAndMarkExplicit(t *testing.T) {
	t.Chdir(t.TempDir()) // keep godotenv away from any real .env

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg, rest, err := Load(fs, []string{"-demo", "-proxy", "https://corsproxy.io/?", "cdx", "example.com"})
	require.NoError(t, err)

	assert.True(t, cfg.DemoMode)
	assert.Equal(t, "https://corsproxy.io/?", cfg.CORSProxy)
	assert.Equal(t, []string{"cdx", "example.com"}, rest)

	require.NoError(t, cfg.ApplySettings(map[string]string{SettingDemoMode: "false"}))
	assert.True(t, cfg.DemoMode, "flag beats stored setting")
}

func TestValidateSetting(t *testing.T) {
	assert.NoError(t, ValidateSetting(SettingRateLimit, "2.5"))
	assert.Error(t, ValidateSetting(SettingRateLimit, "-1"))
	assert.Error(t, ValidateSetting("nope", "1"))
	assert.Contains(t, SettingKeys(), SettingCORSProxy)
}
