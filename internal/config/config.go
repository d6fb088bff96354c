// Package config holds the runtime configuration passed explicitly into every
// client and service. Values are layered: defaults, then a local .env file,
// then OMNIDASH_* environment variables, then command-line flags. Settings
// persisted in the database fill in anything the user did not set explicitly.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Upstream endpoints
const (
	DefaultAvailabilityEndpoint = "https://archive.org/wayback/available"
	DefaultCDXEndpoint          = "https://web.archive.org/cdx/search/cdx"
	DefaultSaveEndpoint         = "https://web.archive.org/save"
	DefaultReplayBase           = "https://web.archive.org/web"
	DefaultMetadataEndpoint     = "https://archive.org/metadata"
	DefaultViewsEndpoint        = "https://be-api.us.archive.org/views/v1/short"
)

// Public CORS proxies tried, in order, when a direct fetch fails at the transport level
const (
	ProxyAllOrigins  = "https://api.allorigins.win/raw?url="
	ProxyCorsProxyIO = "https://corsproxy.io/?"
)

// Config is the single configuration object for the application
type Config struct {
	CORSProxy   string        // operator-configured proxy prefix; empty means direct + automatic fallback
	DemoMode    bool          // serve canned data instead of calling upstream APIs
	DemoLatency time.Duration // artificial delay for demo responses

	AccessKey string // archive.org S3-style access key
	SecretKey string

	DBPath    string
	ExportDir string

	CDXLimit        int
	HTTPTimeout     time.Duration
	FallbackTimeout time.Duration // only applies to the first fallback proxy
	FallbackProxies []string

	Concurrency int     // download-all worker count
	RateLimit   float64 // downloads per second, 0 disables pacing

	BackendAddr     string
	EncryptionKey   string // hex-encoded 32 bytes
	CredentialsFile string
	AllowedOrigins  []string

	AvailabilityEndpoint string
	CDXEndpoint          string
	SaveEndpoint         string
	ReplayBase           string
	MetadataEndpoint     string
	ViewsEndpoint        string

	Debug bool

	explicit map[string]bool
}

// LoadDefaults populates Config with development defaults
func (c *Config) LoadDefaults() {
	c.DemoLatency = 700 * time.Millisecond
	c.DBPath = "omnidash.db"
	c.ExportDir = "."
	c.CDXLimit = 10000
	c.HTTPTimeout = 60 * time.Second
	c.FallbackTimeout = 5 * time.Second
	c.FallbackProxies = []string{ProxyAllOrigins, ProxyCorsProxyIO}
	c.Concurrency = 2
	c.RateLimit = 1
	c.BackendAddr = ":3002"
	c.CredentialsFile = "credentials.enc"
	c.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	c.AvailabilityEndpoint = DefaultAvailabilityEndpoint
	c.CDXEndpoint = DefaultCDXEndpoint
	c.SaveEndpoint = DefaultSaveEndpoint
	c.ReplayBase = DefaultReplayBase
	c.MetadataEndpoint = DefaultMetadataEndpoint
	c.ViewsEndpoint = DefaultViewsEndpoint
	c.explicit = make(map[string]bool)
}

// Load builds a Config from defaults, .env, the environment and the given flag arguments.
// It returns the remaining (non-flag) arguments.
func Load(fs *flag.FlagSet, args []string) (*Config, []string, error) {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.LoadDefaults()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, nil, err
	}

	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagSettingKeys[f.Name]; ok {
			cfg.explicit[key] = true
		}
	})
	return cfg, fs.Args(), nil
}

// RegisterFlags binds the global flags to the config fields
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.CORSProxy, "proxy", c.CORSProxy, "CORS proxy prefix (e.g. https://corsproxy.io/?)")
	fs.BoolVar(&c.DemoMode, "demo", c.DemoMode, "Use canned demo data instead of live APIs")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "Path to SQLite snapshot database")
	fs.StringVar(&c.ExportDir, "export-dir", c.ExportDir, "Directory for exported files")
	fs.IntVar(&c.CDXLimit, "cdx-limit", c.CDXLimit, "Maximum CDX rows to request")
	fs.IntVar(&c.Concurrency, "concurrency", c.Concurrency, "Parallel snapshot downloads")
	fs.Float64Var(&c.RateLimit, "rate", c.RateLimit, "Snapshot downloads per second (0 = unlimited)")
	fs.StringVar(&c.BackendAddr, "addr", c.BackendAddr, "Credential backend listen address")
	fs.StringVar(&c.CredentialsFile, "credentials-file", c.CredentialsFile, "Encrypted credentials file")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
}

// flagSettingKeys maps flag names onto persisted setting keys
var flagSettingKeys = map[string]string{
	"proxy":       SettingCORSProxy,
	"demo":        SettingDemoMode,
	"export-dir":  SettingExportDir,
	"cdx-limit":   SettingCDXLimit,
	"concurrency": SettingConcurrency,
	"rate":        SettingRateLimit,
}

// ApplyEnv overlays OMNIDASH_* variables (and the legacy PORT/ENCRYPTION_KEY/FRONTEND_URL)
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if c.explicit == nil {
		c.explicit = make(map[string]bool)
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	for env, key := range envSettingKeys {
		if v, ok := get(env); ok {
			if err := c.setSetting(key, v); err != nil {
				return fmt.Errorf("invalid %s: %w", env, err)
			}
			c.explicit[key] = true
		}
	}

	if v, ok := get("OMNIDASH_ACCESS_KEY"); ok {
		c.AccessKey = v
	}
	if v, ok := get("OMNIDASH_SECRET_KEY"); ok {
		c.SecretKey = v
	}
	if v, ok := get("OMNIDASH_DB"); ok {
		c.DBPath = v
	}
	if v, ok := get("OMNIDASH_CREDENTIALS_FILE"); ok {
		c.CredentialsFile = v
	}
	if v, ok := get("ENCRYPTION_KEY"); ok {
		c.EncryptionKey = v
	}
	if v, ok := get("OMNIDASH_ADDR"); ok {
		c.BackendAddr = v
	} else if v, ok := get("PORT"); ok {
		c.BackendAddr = ":" + v
	}
	if v, ok := get("FRONTEND_URL"); ok {
		c.AllowedOrigins = append(c.AllowedOrigins, v)
	}
	if v, ok := get("OMNIDASH_DEMO_LATENCY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OMNIDASH_DEMO_LATENCY: %w", err)
		}
		c.DemoLatency = d
	}
	return nil
}
