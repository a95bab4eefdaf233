package serv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dosco/nlpipe/core"
	"github.com/dosco/nlpipe/serv/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

type Core = core.Config

// Configuration for the translation service
type Config struct {
	// Configuration for the translation engine
	Core `mapstructure:",squash"`

	// Configuration for the HTTP service
	Serv `mapstructure:",squash"`

	hostPort string
	viper    *viper.Viper
}

// Configuration for the HTTP service
type Serv struct {
	// Application name is used in log messages and the Server header
	AppName string `mapstructure:"app_name"`

	// When enabled runs the service with production defaults. The web UI
	// is off and neither the config nor the schema file are watched.
	Production bool `mapstructure:"production"`

	// The default path to find all configuration files
	ConfigPath string `mapstructure:"config_path"`

	// Logging level must be one of debug, error, warn, info
	LogLevel string `mapstructure:"log_level"`

	// Logging Format: "auto" (default, colored console in dev, JSON in production),
	// "json" (always JSON), or "simple" (always colored console)
	LogFormat string `mapstructure:"log_format" validate:"omitempty,oneof=auto json simple"`

	// The host and port the service runs on. Example localhost:8080
	HostPort string `mapstructure:"host_port"`

	// Host to run the service on
	Host string

	// Port to run the service on
	Port string

	// Enables HTTP compression
	HTTPGZip bool `mapstructure:"http_compress"`

	// Sets the API rate limits
	RateLimiter RateLimiter `mapstructure:"rate_limiter"`

	// Enable the web UI. Disabled in production
	WebUI bool `mapstructure:"web_ui"`

	// Enables reloading the service on config changes. Disabled in production
	WatchAndReload bool `mapstructure:"reload_on_config_change"`

	// Sets the HTTP CORS Access-Control-Allow-Origin header
	AllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// Sets the HTTP CORS Access-Control-Allow-Headers header
	AllowedHeaders []string `mapstructure:"cors_allowed_headers"`

	// Enables debug logs for CORS
	DebugCORS bool `mapstructure:"cors_debug"`

	// Sets the HTTP Cache-Control header on translation responses
	CacheControl string `mapstructure:"cache_control"`

	// MongoDB used to run translated pipelines
	Mongo Mongo `mapstructure:"mongo"`
}

// RateLimiter sets the API rate limits
type RateLimiter struct {
	// The number of events per second
	Rate float64 `validate:"gte=0"`

	// Bucket a burst of at most 'bucket' number of events
	Bucket int `validate:"gte=0"`

	// The header that contains the client ip
	IPHeader string `mapstructure:"ip_header"`
}

// Mongo configures the database pipelines are run against. When URL is
// empty the run endpoint is disabled.
type Mongo struct {
	URL      string
	Database string `validate:"required_with=URL"`

	// Timeout for connecting and for each pipeline run
	Timeout time.Duration

	// Number of times a failed connection is retried at startup
	ConnectRetries int `mapstructure:"connect_retries" validate:"gte=0"`

	// Max number of documents returned by a run, 0 for no limit
	MaxDocs int `mapstructure:"max_docs" validate:"gte=0"`

	// Lift the fields of a compound group _id to the top of each document
	FlattenGroupID bool `mapstructure:"flatten_group_id"`
}

// ReadInConfig function reads in the config file for the environment specified in the GO_ENV
// environment variable. This is the best way to create a new service config.
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is the same as ReadInConfig but it also takes a filesytem as an argument
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	cp := filepath.Dir(configFile)
	vi := newViper(cp, filepath.Base(configFile))

	if fs != nil {
		vi.SetFs(fs)
	}

	if err := vi.ReadInConfig(); err != nil {
		return nil, err
	}

	if pcf := vi.GetString("inherits"); pcf != "" {
		cf := vi.ConfigFileUsed()
		vi = newViper(cp, pcf)
		if fs != nil {
			vi.SetFs(fs)
		}

		if err := vi.ReadInConfig(); err != nil {
			return nil, err
		}

		if value := vi.GetString("inherits"); value != "" {
			return nil, fmt.Errorf("inherited config '%s' cannot itself inherit '%s'", pcf, value)
		}

		vi.SetConfigFile(cf)

		if err := vi.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	setEnvOverrides(vi)

	config := &Config{viper: vi}
	if err := vi.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}
	config.ConfigPath = cp

	return config, nil
}

// NewConfig function creates a new service configuration from the provided config string
func NewConfig(config, format string) (*Config, error) {
	if format == "" {
		format = "yaml"
	}

	vi := newViperWithDefaults()
	vi.SetConfigType(format)

	if err := vi.ReadConfig(strings.NewReader(config)); err != nil {
		return nil, err
	}

	c := &Config{viper: vi}
	if err := vi.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	return c, nil
}

// setEnvOverrides applies NL_ prefixed environment variables on top of
// the config file. NL_MONGO_URL sets mongo.url.
func setEnvOverrides(vi *viper.Viper) {
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, "NL_") {
			continue
		}
		if k, v, ok := strings.Cut(e, "="); ok {
			util.SetKeyValue(vi, k, v)
		}
	}
}

// newViperWithDefaults returns a new viper instance with the default settings
func newViperWithDefaults() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("app_name", "nlpipe")
	vi.SetDefault("host_port", defaultHP)
	vi.SetDefault("web_ui", false)
	vi.SetDefault("http_compress", true)

	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "auto")

	vi.SetDefault("schema_file", "schema.yml")
	vi.SetDefault("cache_size", core.DefaultCacheSize)
	vi.SetDefault("disable_cache", false)
	vi.SetDefault("watch_schema", false)

	vi.SetDefault("rate_limiter.rate", 0)
	vi.SetDefault("rate_limiter.bucket", 0)
	vi.SetDefault("rate_limiter.ip_header", "")

	vi.SetDefault("mongo.url", "")
	vi.SetDefault("mongo.database", "")
	vi.SetDefault("mongo.timeout", "10s")
	vi.SetDefault("mongo.max_docs", 1000)
	vi.SetDefault("mongo.connect_retries", 2)
	vi.SetDefault("mongo.flatten_group_id", false)

	vi.SetDefault("env", "development")

	vi.BindEnv("env", "GO_ENV") //nolint:errcheck
	vi.BindEnv("host", "HOST")  //nolint:errcheck
	vi.BindEnv("port", "PORT")  //nolint:errcheck

	return vi
}

// newViper returns a new viper instance with the default settings
func newViper(configPath, configFile string) *viper.Viper {
	vi := newViperWithDefaults()
	vi.SetConfigName(strings.TrimSuffix(configFile, filepath.Ext(configFile)))

	if configPath == "" {
		vi.AddConfigPath("./config")
	} else {
		vi.AddConfigPath(configPath)
	}

	return vi
}

// AbsolutePath returns the absolute path of the file
func (c *Config) AbsolutePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ConfigPath, p)
}

// rateLimiterEnable returns true if the rate limiter is enabled
func (c *Config) rateLimiterEnable() bool {
	return c.RateLimiter.Rate > 0 && c.RateLimiter.Bucket > 0
}

// mongoEnable returns true if a database to run pipelines is configured
func (c *Config) mongoEnable() bool {
	return c.Mongo.URL != ""
}

// ShouldUseJSONLogs returns true if logs should be in JSON format.
// Returns true if log_format is "json" OR if log_format is "auto" and production mode is enabled.
// Returns false otherwise (colored console output for dev mode).
func (c *Config) ShouldUseJSONLogs() bool {
	if c.LogFormat == "json" {
		return true
	}
	if c.LogFormat == "auto" && c.Serv.Production {
		return true
	}
	return false
}

// GetConfigName returns the name of the configuration
func GetConfigName() string {
	goEnv := strings.TrimSpace(strings.ToLower(os.Getenv("GO_ENV")))

	switch goEnv {
	case "production", "prod":
		return "prod"

	case "staging", "stage":
		return "stage"

	case "testing", "test":
		return "test"

	case "development", "dev", "":
		return "dev"

	default:
		return goEnv
	}
}
