// Package config loads pipeline configuration from file and environment and
// initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Datastore DatastoreConfig `yaml:"datastore" mapstructure:"datastore"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Boundary  BoundaryConfig  `yaml:"boundary" mapstructure:"boundary"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DatastoreConfig configures the upstream dataset fetch phase.
type DatastoreConfig struct {
	MetadataBase  string `yaml:"metadata_base" mapstructure:"metadata_base"`
	DatastoreBase string `yaml:"datastore_base" mapstructure:"datastore_base"`
	CollectionID  string `yaml:"collection_id" mapstructure:"collection_id"`
	PageSize      int    `yaml:"page_size" mapstructure:"page_size"`
	FloorPageSize int    `yaml:"retry_floor_page_size" mapstructure:"retry_floor_page_size"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	InputDir      string `yaml:"input_dir" mapstructure:"input_dir"`
}

// GeocodeConfig configures the enrichment phase.
type GeocodeConfig struct {
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`
	Concurrency     int           `yaml:"geocode_concurrency" mapstructure:"geocode_concurrency"`
	BatchSize       int           `yaml:"geocode_batch_size" mapstructure:"geocode_batch_size"`
	SubBatchSize    int           `yaml:"sub_batch_size" mapstructure:"sub_batch_size"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay" mapstructure:"inter_batch_delay"`
	ContinuousMode  bool          `yaml:"continuous_mode" mapstructure:"continuous_mode"`
	MaxRetries      int           `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit       float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// BoundaryConfig locates the boundary layer and lookup inputs.
type BoundaryConfig struct {
	SubzonePath      string `yaml:"subzone_path" mapstructure:"subzone_path"`
	PlanningAreaPath string `yaml:"planning_area_path" mapstructure:"planning_area_path"`
	SSICPath         string `yaml:"ssic_path" mapstructure:"ssic_path"`
}

// ReportConfig configures the fetch report output.
type ReportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the query API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("datastore.collection_id", "2")
	v.SetDefault("datastore.page_size", 1000)
	v.SetDefault("datastore.retry_floor_page_size", 500)
	v.SetDefault("datastore.max_retries", 5)
	v.SetDefault("datastore.timeout_secs", 60)
	v.SetDefault("geocode.geocode_concurrency", 8)
	v.SetDefault("geocode.geocode_batch_size", 5000)
	v.SetDefault("geocode.sub_batch_size", 32)
	v.SetDefault("geocode.inter_batch_delay", 200*time.Millisecond)
	v.SetDefault("geocode.continuous_mode", false)
	v.SetDefault("geocode.max_retries", 5)
	v.SetDefault("geocode.rate_limit", 5.0)
	v.SetDefault("boundary.subzone_path", "data/map/subzone.geojson")
	v.SetDefault("boundary.planning_area_path", "data/map/planning_area.geojson")
	v.SetDefault("report.path", "docs/fetch_report.md")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
