// Package config loads the application configuration from file and
// environment and owns global logger initialization.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`
	Cleaner  CleanerConfig  `yaml:"cleaner" mapstructure:"cleaner"`
	Geo      GeoConfig      `yaml:"geo" mapstructure:"geo"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// MatchingConfig configures the matching stages and the granularity gate.
type MatchingConfig struct {
	SurfaceTolerance     float64 `yaml:"surface_tolerance" mapstructure:"surface_tolerance"`
	MinFuzzyScore        float64 `yaml:"min_fuzzy_score" mapstructure:"min_fuzzy_score"`
	GridCellSizeM        float64 `yaml:"grid_cell_size_m" mapstructure:"grid_cell_size_m"`
	GridMatchScore       float64 `yaml:"grid_match_score" mapstructure:"grid_match_score"`
	GridTriggerMatchRate float64 `yaml:"grid_trigger_match_rate" mapstructure:"grid_trigger_match_rate"`
	MinCompletenessPct   float64 `yaml:"min_completeness_pct" mapstructure:"min_completeness_pct"`
	MicroStdFloor        float64 `yaml:"micro_std_floor" mapstructure:"micro_std_floor"`
	MicroCVFloor         float64 `yaml:"micro_cv_floor" mapstructure:"micro_cv_floor"`
	MinZonePassRatio     float64 `yaml:"min_zone_pass_ratio" mapstructure:"min_zone_pass_ratio"`
	RepresentativePolicy string  `yaml:"representative_policy" mapstructure:"representative_policy"`
}

// CleanerConfig holds the fixed plausibility bounds for the dataset cleaner.
type CleanerConfig struct {
	SurfaceMin   float64 `yaml:"surface_min" mapstructure:"surface_min"`
	SurfaceMax   float64 `yaml:"surface_max" mapstructure:"surface_max"`
	PriceAreaMin float64 `yaml:"price_area_min" mapstructure:"price_area_min"`
	PriceAreaMax float64 `yaml:"price_area_max" mapstructure:"price_area_max"`
	RoomMax      int     `yaml:"room_max" mapstructure:"room_max"`
	MinScore     float64 `yaml:"min_score" mapstructure:"min_score"`
}

// GeoConfig anchors the planar projection. Defaults center on Barcelona but
// the reference point is an explicit parameter, not a constant.
type GeoConfig struct {
	RefLat float64 `yaml:"ref_lat" mapstructure:"ref_lat"`
	RefLon float64 `yaml:"ref_lon" mapstructure:"ref_lon"`
}

// StoreConfig configures the run/audit persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only run API.
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
	v.SetEnvPrefix("LINKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("matching.surface_tolerance", 0.15)
	v.SetDefault("matching.min_fuzzy_score", 0.5)
	v.SetDefault("matching.grid_cell_size_m", 100)
	v.SetDefault("matching.grid_match_score", 0.5)
	v.SetDefault("matching.grid_trigger_match_rate", 0.5)
	v.SetDefault("matching.min_completeness_pct", 50)
	v.SetDefault("matching.micro_std_floor", 15)
	v.SetDefault("matching.micro_cv_floor", 0.15)
	v.SetDefault("matching.min_zone_pass_ratio", 1.0)
	v.SetDefault("matching.representative_policy", "first_seen")
	v.SetDefault("cleaner.surface_min", 15)
	v.SetDefault("cleaner.surface_max", 600)
	v.SetDefault("cleaner.price_area_min", 500)
	v.SetDefault("cleaner.price_area_max", 20000)
	v.SetDefault("cleaner.room_max", 10)
	v.SetDefault("cleaner.min_score", 0.5)
	v.SetDefault("geo.ref_lat", 41.3870)
	v.SetDefault("geo.ref_lon", 2.1700)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "linker.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
