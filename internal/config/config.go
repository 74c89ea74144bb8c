// Package config loads application configuration and initializes logging.
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
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Matcher     MatcherConfig     `yaml:"matcher" mapstructure:"matcher"`
	Probability ProbabilityConfig `yaml:"probability" mapstructure:"probability"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MatcherConfig configures the feature matcher. Weights apply to the three
// sub-scores and must sum to 1.0.
type MatcherConfig struct {
	CategoryWeight    float64 `yaml:"category_weight" mapstructure:"category_weight"`
	LocationWeight    float64 `yaml:"location_weight" mapstructure:"location_weight"`
	EligibilityWeight float64 `yaml:"eligibility_weight" mapstructure:"eligibility_weight"`
	MaxResults        int     `yaml:"max_results" mapstructure:"max_results"`
}

// ProbabilityConfig configures the probability scorer.
type ProbabilityConfig struct {
	CacheTTLDays     int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
	BatchConcurrency int     `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
	BatchQPS         float64 `yaml:"batch_qps" mapstructure:"batch_qps"` // store query rate limit for batch scoring
}

// ServerConfig configures the HTTP API.
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
	v.SetEnvPrefix("INCENTEDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("matcher.category_weight", 0.40)
	v.SetDefault("matcher.location_weight", 0.35)
	v.SetDefault("matcher.eligibility_weight", 0.25)
	v.SetDefault("matcher.max_results", 10)
	v.SetDefault("probability.cache_ttl_days", 7)
	v.SetDefault("probability.batch_concurrency", 5)
	v.SetDefault("probability.batch_qps", 20)
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

// Validate checks that a loaded config is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	m := c.Matcher
	for name, w := range map[string]float64{
		"category_weight":    m.CategoryWeight,
		"location_weight":    m.LocationWeight,
		"eligibility_weight": m.EligibilityWeight,
	} {
		if w < 0 {
			errs = append(errs, name+" must be >= 0")
		}
	}
	sum := m.CategoryWeight + m.LocationWeight + m.EligibilityWeight
	if sum < 0.999 || sum > 1.001 {
		errs = append(errs, "matcher weights must sum to 1.0")
	}
	if m.MaxResults < 0 {
		errs = append(errs, "max_results must be >= 0")
	}

	if c.Probability.CacheTTLDays <= 0 {
		errs = append(errs, "cache_ttl_days must be > 0")
	}
	if c.Probability.BatchConcurrency <= 0 {
		errs = append(errs, "batch_concurrency must be > 0")
	}

	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		errs = append(errs, "store driver must be postgres or sqlite")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
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
