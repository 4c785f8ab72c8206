// Package config loads the service configuration with viper from
// environment variables and an optional config.yaml.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends
const (
	StorageFS  = "fs"
	StorageGCS = "gcs"
)

// Config groups the application settings
type Config struct {
	App     AppConfig
	Log     LogConfig
	HTTP    HTTPConfig
	Auth    AuthConfig
	Storage StorageConfig
	Schema  SchemaConfig
}

// AppConfig holds general settings
type AppConfig struct {
	Env     string // development, production
	Version string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

// AuthConfig maps client names to API keys. An empty map disables
// authentication.
type AuthConfig struct {
	Clients map[string]string
}

// StorageConfig selects where generated documents are kept
type StorageConfig struct {
	Backend        string // fs or gcs
	Dir            string
	GCSBucket      string
	GCSPrefix      string
	GCSCredentials string // JSON key or key file path; empty = default credentials
}

// SchemaConfig configures the XSD check
type SchemaConfig struct {
	XSDPath       string
	XMLLintPath   string
	PackagerCheck bool // re-check the XML inside the packager
}

// Load reads configuration. When configFile is empty, config.yaml is
// looked up in . and ./config and ignored if missing. Environment variables
// take precedence over the file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		_ = v.ReadInConfig() // optional
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	clients, err := getClients(v, "CLIENTS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:     getString(v, "APP_ENV", "development"),
			Version: getString(v, "APP_VERSION", "1.0.0"),
		},
		Log: LogConfig{
			Level: getString(v, "LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			Address:      getString(v, "HTTP_ADDRESS", ":8080"),
			ReadTimeout:  getDuration(v, "HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration(v, "HTTP_WRITE_TIMEOUT", 60*time.Second),
			MaxBodyBytes: getInt64(v, "HTTP_MAX_BODY_BYTES", 10<<20),
		},
		Auth: AuthConfig{
			Clients: clients,
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(getString(v, "STORAGE_BACKEND", StorageFS)),
			Dir:            getString(v, "STORAGE_DIR", "/tmp/facturx"),
			GCSBucket:      getString(v, "GCS_BUCKET", ""),
			GCSPrefix:      getString(v, "GCS_PREFIX", "invoices"),
			GCSCredentials: getString(v, "GCS_CREDENTIALS", ""),
		},
		Schema: SchemaConfig{
			XSDPath:       getString(v, "XSD_PATH", ""),
			XMLLintPath:   getString(v, "XMLLINT_PATH", ""),
			PackagerCheck: getBool(v, "PACKAGER_CHECK_XSD", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageFS:
		if c.Storage.Dir == "" {
			return fmt.Errorf("config: STORAGE_DIR is required for the fs backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("config: GCS_BUCKET is required for the gcs backend")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q (fs or gcs)", c.Storage.Backend)
	}
	return nil
}

// AuthEnabled returns whether API keys are required
func (c AuthConfig) AuthEnabled() bool {
	return len(c.Clients) > 0
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

func getInt64(v *viper.Viper, key string, def int64) int64 {
	if n := v.GetInt64(key); v.IsSet(key) && n > 0 {
		return n
	}
	return def
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	// bare numbers are seconds
	if n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key))); err == nil {
		return time.Duration(n) * time.Second
	}
	if d := v.GetDuration(key); d > 0 {
		return d
	}
	return def
}

// getClients accepts a JSON object string (env) or a mapping (config file)
func getClients(v *viper.Viper, key string) (map[string]string, error) {
	clients := map[string]string{}
	if !v.IsSet(key) {
		return clients, nil
	}

	switch raw := v.Get(key).(type) {
	case string:
		if strings.TrimSpace(raw) == "" {
			return clients, nil
		}
		if err := json.Unmarshal([]byte(raw), &clients); err != nil {
			return nil, fmt.Errorf("config: %s must be a JSON object of name to API key: %w", key, err)
		}
	default:
		for name, apiKey := range v.GetStringMapString(key) {
			clients[name] = apiKey
		}
	}
	return clients, nil
}
