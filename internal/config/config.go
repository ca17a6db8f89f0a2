// Package config loads process configuration for the adapters and the
// gateway from config files, environment variables and .env files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
)

// EnvPrefix prefixes every environment variable, e.g. XREGISTRY_PORT.
const EnvPrefix = "XREGISTRY"

// Config holds the process configuration.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file actually read, if any
	ConfigFile string

	// HTTP surface
	Host      string
	Port      int
	BaseURL   string
	APIKey    string
	RateLimit float64
	CORS      bool

	// Storage
	DataDir          string
	SnapshotInterval time.Duration

	// Catalog synchronization
	SyncInterval time.Duration
	SyncLookback time.Duration

	// Upstream access
	UpstreamTimeout    time.Duration
	UpstreamRateLimit  float64
	UpstreamToken      string
	UpstreamAuthHeader string
	ResolveTimeout     time.Duration

	// NuGet endpoint overrides; empty means nuget.org
	NuGetCatalogURL       string
	NuGetRegistrationURL  string
	NuGetFlatContainerURL string
	NuGetSearchURL        string

	// Gateway
	Routes         []string
	RoutesFile     string
	StartupTimeout time.Duration
	AdapterTimeout time.Duration

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// Load reads configuration in order of precedence:
//  1. Command-line flags (applied later by cobra)
//  2. XREGISTRY_* environment variables
//  3. .env and .env.local
//  4. Config file (configFile, else ~/.xregistry.yaml or ./.xregistry.yaml)
//  5. Defaults
func Load(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".xregistry")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicitly named file must exist
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "read "+v.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no-color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		Host:      v.GetString("host"),
		Port:      v.GetInt("port"),
		BaseURL:   v.GetString("base_url"),
		APIKey:    v.GetString("api_key"),
		RateLimit: v.GetFloat64("rate_limit"),
		CORS:      v.GetBool("cors"),

		DataDir:          v.GetString("data_dir"),
		SnapshotInterval: v.GetDuration("snapshot_interval"),

		SyncInterval: v.GetDuration("sync_interval"),
		SyncLookback: v.GetDuration("sync_lookback"),

		UpstreamTimeout:    v.GetDuration("upstream_timeout"),
		UpstreamRateLimit:  v.GetFloat64("upstream_rate_limit"),
		UpstreamToken:      v.GetString("upstream_token"),
		UpstreamAuthHeader: v.GetString("upstream_auth_header"),
		ResolveTimeout:     v.GetDuration("resolve_timeout"),

		NuGetCatalogURL:       v.GetString("nuget_catalog_url"),
		NuGetRegistrationURL:  v.GetString("nuget_registration_url"),
		NuGetFlatContainerURL: v.GetString("nuget_flatcontainer_url"),
		NuGetSearchURL:        v.GetString("nuget_search_url"),

		Routes:         splitList(v.GetStringSlice("routes")),
		RoutesFile:     v.GetString("routes_file"),
		StartupTimeout: v.GetDuration("startup_timeout"),
		AdapterTimeout: v.GetDuration("adapter_timeout"),

		LogLevel:  firstNonEmpty(v.GetString("log_level"), os.Getenv("LOG_LEVEL")),
		LogFormat: firstNonEmpty(v.GetString("log_format"), os.Getenv("LOG_FORMAT"), "auto"),
		LogOutput: firstNonEmpty(v.GetString("log_output"), os.Getenv("LOG_OUTPUT"), "stderr"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 3000)
	v.SetDefault("rate_limit", constants.ClientRateLimit)
	v.SetDefault("cors", true)
	v.SetDefault("snapshot_interval", constants.SnapshotInterval)
	v.SetDefault("sync_interval", constants.SyncInterval)
	v.SetDefault("sync_lookback", constants.SyncLookback)
	v.SetDefault("upstream_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("upstream_rate_limit", constants.UpstreamRateLimit)
	v.SetDefault("resolve_timeout", constants.ResolveTimeout)
	v.SetDefault("startup_timeout", constants.StartupTimeout)
	v.SetDefault("adapter_timeout", constants.AdapterTimeout)
}

// Validate rejects values no component could run with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.NewValidationError("port", c.Port, "must be between 0 and 65535")
	}
	if c.RateLimit < 0 {
		return errors.NewValidationError("rate_limit", c.RateLimit, "must not be negative")
	}
	if c.UpstreamRateLimit < 0 {
		return errors.NewValidationError("upstream_rate_limit", c.UpstreamRateLimit, "must not be negative")
	}
	for key, d := range map[string]time.Duration{
		"sync_interval":    c.SyncInterval,
		"upstream_timeout": c.UpstreamTimeout,
		"resolve_timeout":  c.ResolveTimeout,
	} {
		if d <= 0 {
			return errors.NewValidationError(key, d, "must be positive")
		}
	}
	return nil
}

// UpdateFromFlags applies parsed global flags. Flag values take
// precedence over the config file and the environment.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = c.Verbose || verbose
	c.Quiet = c.Quiet || quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads .env files; .env.local overrides .env. Variables
// already set in the environment are never overwritten.
func loadEnvFiles() {
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
