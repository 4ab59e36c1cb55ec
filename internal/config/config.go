package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFileName is looked up in the user's home folder.
	DefaultConfigFileName = "watchman.conf"

	// SaaSAPIURL is the public GitHub API host.
	SaaSAPIURL = "https://api.github.com"
)

// Config is the resolved application configuration.
type Config struct {
	GitHub     GitHub     `mapstructure:"github_watchman"`
	Logging    Logging    `mapstructure:"logging"`
	HTTPClient HTTPClient `mapstructure:"http_client"`
	Search     Search     `mapstructure:"search"`
	Output     Output     `mapstructure:"output"`
}

// GitHub holds the connection settings.
type GitHub struct {
	Token string `mapstructure:"token"`
	URL   string `mapstructure:"url"`
}

// Logging configures the operational logger and the log-based sinks.
type Logging struct {
	Level       string      `mapstructure:"level"`
	JSONFormat  bool        `mapstructure:"json_format"`
	FileLogging FileLogging `mapstructure:"file_logging"`
	JSONTCP     JSONTCP     `mapstructure:"json_tcp"`
}

// FileLogging configures the file sink.
type FileLogging struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// JSONTCP configures the stream sink.
type JSONTCP struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// HTTPClient configures the transport used for API calls.
type HTTPClient struct {
	RetryCount       int             `mapstructure:"retry_count"`
	RetryWaitTime    time.Duration   `mapstructure:"retry_wait_time"`
	RetryMaxWaitTime time.Duration   `mapstructure:"retry_max_wait_time"`
	Timeout          time.Duration   `mapstructure:"timeout"`
	TLSClientConfig  TLSClientConfig `mapstructure:"tls_client_config"`
	Proxy            Proxy           `mapstructure:"proxy"`
	Debug            bool            `mapstructure:"debug"`
}

// TLSClientConfig toggles certificate verification.
type TLSClientConfig struct {
	Verify bool `mapstructure:"verify"`
}

// Proxy is an optional HTTP proxy.
type Proxy struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Search tunes pagination and server error backoff.
type Search struct {
	PerPage          int           `mapstructure:"per_page"`
	PageDelay        time.Duration `mapstructure:"page_delay"`
	ServerErrorDelay time.Duration `mapstructure:"server_error_delay"`
}

// Output configures where file-based sinks write.
type Output struct {
	Dir string `mapstructure:"dir"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"github_watchman.token":     "GITHUB_WATCHMAN_TOKEN",
	"github_watchman.url":       "GITHUB_WATCHMAN_URL",
	"logging.file_logging.path": "GITHUB_WATCHMAN_LOG_PATH",
	"logging.json_tcp.host":     "GITHUB_WATCHMAN_HOST",
	"logging.json_tcp.port":     "GITHUB_WATCHMAN_PORT",
	"logging.level":             "WATCHMAN_LOG_LEVEL",
	"output.dir":                "WATCHMAN_OUTPUT_DIR",
}

// Load resolves the configuration from defaults, the config file and the environment.
// An empty path means ~/watchman.conf; a missing default file is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.GitHub.URL = NormalizeBaseURL(cfg.GitHub.URL)
	return &cfg, nil
}

// NormalizeBaseURL appends the enterprise API prefix when the URL is not the public API host.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, SaaSAPIURL) && !strings.Contains(raw, "api/v3") {
		return strings.TrimRight(raw, "/") + "/api/v3"
	}
	return strings.TrimRight(raw, "/")
}

// DefaultConfigPath returns ~/watchman.conf.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), DefaultConfigFileName)
}

// HomeDir returns the user's home folder, falling back to the working directory.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func setDefaults(v *viper.Viper) {
	httpDefaults := DefaultHTTPConfig()
	searchDefaults := DefaultSearchConfig()

	v.SetDefault("github_watchman.url", SaaSAPIURL)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json_format", false)
	v.SetDefault("logging.file_logging.path", HomeDir())
	v.SetDefault("logging.file_logging.max_size_mb", 100)
	v.SetDefault("logging.file_logging.max_backups", 5)
	v.SetDefault("http_client.retry_count", httpDefaults.RetryCount)
	v.SetDefault("http_client.retry_wait_time", httpDefaults.RetryWaitTime)
	v.SetDefault("http_client.retry_max_wait_time", httpDefaults.RetryMaxWaitTime)
	v.SetDefault("http_client.timeout", httpDefaults.Timeout)
	v.SetDefault("http_client.tls_client_config.verify", true)
	v.SetDefault("search.per_page", searchDefaults.PerPage)
	v.SetDefault("search.page_delay", searchDefaults.PageDelay)
	v.SetDefault("search.server_error_delay", searchDefaults.ServerErrorDelay)
	v.SetDefault("output.dir", ".")
}

// loadEnvFiles loads .env and .env.local from the working directory, ignoring missing files.
func loadEnvFiles() {
	for _, location := range []string{".env", ".env.local"} {
		if _, err := os.Stat(location); err == nil {
			_ = godotenv.Load(location)
		}
	}
}
