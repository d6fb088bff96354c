package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Persisted setting keys
const (
	SettingCORSProxy   = "cors_proxy"
	SettingDemoMode    = "demo_mode"
	SettingExportDir   = "export_dir"
	SettingCDXLimit    = "cdx_limit"
	SettingConcurrency = "concurrency"
	SettingRateLimit   = "rate_limit"
)

var envSettingKeys = map[string]string{
	"OMNIDASH_CORS_PROXY":  SettingCORSProxy,
	"OMNIDASH_DEMO_MODE":   SettingDemoMode,
	"OMNIDASH_EXPORT_DIR":  SettingExportDir,
	"OMNIDASH_CDX_LIMIT":   SettingCDXLimit,
	"OMNIDASH_CONCURRENCY": SettingConcurrency,
	"OMNIDASH_RATE_LIMIT":  SettingRateLimit,
}

// SettingKeys returns the keys accepted by SetSetting, sorted
func SettingKeys() []string {
	keys := make([]string, 0, len(envSettingKeys))
	for _, k := range envSettingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateSetting checks a key/value pair without applying it
func ValidateSetting(key, value string) error {
	var scratch Config
	scratch.LoadDefaults()
	return scratch.setSetting(key, value)
}

// ApplySettings fills in persisted settings for fields not set by env or flags
func (c *Config) ApplySettings(settings map[string]string) error {
	if c.explicit == nil {
		c.explicit = make(map[string]bool)
	}
	for key, value := range settings {
		if c.explicit[key] {
			continue
		}
		if err := c.setSetting(key, value); err != nil {
			return fmt.Errorf("invalid stored setting %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) setSetting(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case SettingCORSProxy:
		c.CORSProxy = value
	case SettingDemoMode:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.DemoMode = b
	case SettingExportDir:
		if value == "" {
			return fmt.Errorf("export dir cannot be empty")
		}
		c.ExportDir = value
	case SettingCDXLimit:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.CDXLimit = n
	case SettingConcurrency:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if n < 1 {
			return fmt.Errorf("concurrency must be at least 1")
		}
		c.Concurrency = n
	case SettingRateLimit:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		if f < 0 {
			return fmt.Errorf("rate limit cannot be negative")
		}
		c.RateLimit = f
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
