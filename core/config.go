package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
)

// DefaultCacheSize is the number of translated sentences kept when
// Config.CacheSize is not set.
const DefaultCacheSize = 5000

// Configuration for the translation engine
type Config struct {
	// Path to the YAML or JSON file describing collections and their
	// fields. Relative paths are resolved against the config folder by the
	// service.
	SchemaFile string `mapstructure:"schema_file" json:"schema_file" yaml:"schema_file"`

	// Number of translated sentences to cache
	CacheSize int `mapstructure:"cache_size" json:"cache_size" yaml:"cache_size" validate:"gte=0"`

	// Disable caching of translations
	DisableCache bool `mapstructure:"disable_cache" json:"disable_cache" yaml:"disable_cache"`

	// Reload the schema when the schema file changes. Ignored in production.
	WatchSchema bool `mapstructure:"watch_schema" json:"watch_schema" yaml:"watch_schema"`

	// When enabled the engine runs with production defaults, the schema
	// file is never watched.
	Production bool `mapstructure:"-" json:"-" yaml:"-"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

var validate = validator.New()

// LoadSchemaFile reads and parses a schema file from fs.
func LoadSchemaFile(fs afero.Fs, path string) (*Schema, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("schema file: %w", err)
	}
	s, err := ParseSchema(b)
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return s, nil
}
