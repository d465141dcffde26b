// Package config loads mailbuddy settings from flags, environment variables
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session store types.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// DefaultAPIURL is the backend base URL used when none is configured.
const DefaultAPIURL = "http://localhost:8000"

// Config is the complete mailbuddy configuration.
type Config struct {
	APIURL    string          `mapstructure:"api_url"`
	Debug     bool            `mapstructure:"debug"`
	Google    GoogleConfig    `mapstructure:"google"`
	Session   SessionConfig   `mapstructure:"session"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Server    ServerConfig    `mapstructure:"server"`
	Assistant AssistantConfig `mapstructure:"assistant"`
}

// GoogleConfig holds the OAuth client registered with Google.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// RedirectURL overrides the loopback redirect chosen at sign-in.
	RedirectURL string `mapstructure:"redirect_url"`
}

// SessionConfig selects where the signed-in session is persisted.
type SessionConfig struct {
	Store  string `mapstructure:"store"`
	Path   string `mapstructure:"path"`
	Secret string `mapstructure:"secret"`
}

// DashboardConfig tunes polling and the enrichment queue.
type DashboardConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	ClassifyInterval time.Duration `mapstructure:"classify_interval"`
	Concurrency      int           `mapstructure:"concurrency"`
	QueueSize        int           `mapstructure:"queue_size"`
}

// ServerConfig configures the backend started by "mailbuddy serve".
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MaxResults     int64  `mapstructure:"max_results"`
}

// AssistantConfig selects the model behind the backend's classification and
// reply drafting. Without an API key the keyword classifier and the reply
// templates are used.
type AssistantConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// NewViper returns a viper instance with defaults and environment bindings.
// Keys map to MAILBUDDY_<KEY> with dots replaced by underscores. The Google
// credentials and the API URL also accept their unprefixed names.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("MAILBUDDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("api_url", "MAILBUDDY_API_URL", "API_URL")
	_ = v.BindEnv("google.client_id", "MAILBUDDY_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID")
	_ = v.BindEnv("google.client_secret", "MAILBUDDY_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET")
	_ = v.BindEnv("session.secret", "MAILBUDDY_SESSION_SECRET")
	_ = v.BindEnv("assistant.api_key", "MAILBUDDY_ASSISTANT_API_KEY", "GOOGLE_API_KEY")

	return v
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("debug", false)

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_url", "")

	v.SetDefault("session.store", StoreFile)
	v.SetDefault("session.path", "")
	v.SetDefault("session.secret", "")

	v.SetDefault("dashboard.poll_interval", 15*time.Second)
	v.SetDefault("dashboard.classify_interval", 2*time.Second)
	v.SetDefault("dashboard.concurrency", 1)
	v.SetDefault("dashboard.queue_size", 256)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.max_results", 20)

	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", DefaultModel)
	v.SetDefault("assistant.max_retries", 5)
	v.SetDefault("assistant.retry_delay", 5*time.Second)
}

// Load reads the config file at path (if non-empty, or the default file if it
// exists) into v and decodes the result. An explicitly named file that cannot
// be read is an error; a missing default file is not.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if def := DefaultConfigFile(); def != "" {
		if _, err := os.Stat(def); err == nil {
			v.SetConfigFile(def)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Session.Path == "" {
		cfg.Session.Path = DefaultSessionPath(cfg.Session.Store)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail far from their source.
func (c *Config) Validate() error {
	var errs []error

	if c.APIURL == "" {
		errs = append(errs, errors.New("api_url must not be empty"))
	}
	switch c.Session.Store {
	case StoreFile, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q, must be one of: file, sqlite", c.Session.Store))
	}
	if c.Dashboard.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.poll_interval must be positive, got %s", c.Dashboard.PollInterval))
	}
	if c.Dashboard.ClassifyInterval < 0 {
		errs = append(errs, fmt.Errorf("dashboard.classify_interval must not be negative, got %s", c.Dashboard.ClassifyInterval))
	}
	if c.Dashboard.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.concurrency must be positive, got %d", c.Dashboard.Concurrency))
	}
	if c.Dashboard.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.queue_size must be positive, got %d", c.Dashboard.QueueSize))
	}
	if c.Server.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("server.max_results must be positive, got %d", c.Server.MaxResults))
	}
	if c.Assistant.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("assistant.max_retries must be positive, got %d", c.Assistant.MaxRetries))
	}
	if c.Assistant.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("assistant.retry_delay must not be negative, got %s", c.Assistant.RetryDelay))
	}

	return errors.Join(errs...)
}

// RequireGoogle reports whether the OAuth client credentials are present.
func (c *Config) RequireGoogle() error {
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		return errors.New("google client credentials are required; set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}
	return nil
}

// DefaultConfigFile returns $XDG_CONFIG_HOME/mailbuddy/config.yaml, or "" when
// the config directory cannot be determined.
func DefaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mailbuddy", "config.yaml")
}

// DefaultSessionPath returns the session file location for store.
func DefaultSessionPath(store string) string {
	name := "session.jwt"
	if store == StoreSQLite {
		name = "mailbuddy.db"
	}
	return filepath.Join(CacheDir(), name)
}

// DefaultLogPath returns where the terminal dashboard writes its log.
func DefaultLogPath() string {
	return filepath.Join(CacheDir(), "mailbuddy.log")
}

// CacheDir returns the per-user mailbuddy cache directory.
func CacheDir() string {
	return filepath.Join(userCacheDir(), "mailbuddy")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"LOCALAPPDATA", "TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		return os.TempDir()
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
