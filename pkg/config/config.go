// Package config loads roomrank settings from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kass/go-room-rank/pkg/ranking"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "roomrank.yaml"

// EnvPrefix prefixes every environment override, e.g. ROOMRANK_LOG_LEVEL.
const EnvPrefix = "ROOMRANK"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root configuration.
type Config struct {
	Ranking RankingConfig `yaml:"ranking"`
	Logging LoggingConfig `yaml:"logging"`
	PostGIS PostGISConfig `yaml:"postgis"`
	Index   IndexConfig   `yaml:"index"`
}

// RankingConfig holds the ranking thresholds and score weights.
type RankingConfig struct {
	MaxDistanceMeters float64         `yaml:"max_distance_meters" split_words:"true"`
	TieBreakMeters    float64         `yaml:"tie_break_meters" split_words:"true"`
	Weights           ranking.Weights `yaml:"weights" ignored:"true"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
	Output string `yaml:"output" split_words:"true"`
}

// PostGISConfig holds the room store connection settings.
type PostGISConfig struct {
	Host           string `yaml:"host" split_words:"true"`
	Port           int    `yaml:"port" split_words:"true"`
	User           string `yaml:"user" split_words:"true"`
	Password       string `yaml:"password" split_words:"true"`
	Database       string `yaml:"database" split_words:"true"`
	SSLMode        string `yaml:"sslmode" split_words:"true"`
	MaxConnections int    `yaml:"max_connections" split_words:"true"`
}

// DSN returns the lib/pq connection string.
func (p PostGISConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// IndexConfig tunes the in-memory map index.
type IndexConfig struct {
	Partitions       int  `yaml:"partitions" split_words:"true"`
	ClusterPrecision uint `yaml:"cluster_precision" split_words:"true"`
}

// env mirrors the overridable settings so envconfig only touches variables
// that are actually set.
type env struct {
	Ranking *RankingConfig `envconfig:"RANKING"`
	Logging *LoggingConfig `envconfig:"LOG"`
	PostGIS *PostGISConfig `envconfig:"POSTGIS"`
	Index   *IndexConfig   `envconfig:"INDEX"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Ranking: RankingConfig{
			MaxDistanceMeters: ranking.DefaultMaxDistanceMeters,
			TieBreakMeters:    ranking.DefaultTieBreakMeters,
			Weights:           ranking.DefaultWeights(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		PostGIS: PostGISConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Password:       "postgres",
			Database:       "roomrank",
			SSLMode:        "disable",
			MaxConnections: 25,
		},
		Index: IndexConfig{
			Partitions:       0,
			ClusterPrecision: 6,
		},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with ROOMRANK_* environment variables.
func ApplyEnv(cfg *Config) error {
	e := env{
		Ranking: &cfg.Ranking,
		Logging: &cfg.Logging,
		PostGIS: &cfg.PostGIS,
		Index:   &cfg.Index,
	}
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// Validate rejects settings that would break ranking guarantees.
func (c Config) Validate() error {
	if c.Ranking.MaxDistanceMeters < 0 {
		return fmt.Errorf("%w: ranking.max_distance_meters must be non-negative", ErrInvalidConfig)
	}
	if c.Ranking.TieBreakMeters < 0 {
		return fmt.Errorf("%w: ranking.tie_break_meters must be non-negative", ErrInvalidConfig)
	}
	if err := c.Ranking.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Index.Partitions < 0 {
		return fmt.Errorf("%w: index.partitions must be non-negative", ErrInvalidConfig)
	}
	if c.Index.ClusterPrecision < 1 || c.Index.ClusterPrecision > 12 {
		return fmt.Errorf("%w: index.cluster_precision must be between 1 and 12", ErrInvalidConfig)
	}
	return nil
}

// NewRanker builds a ranker from the ranking section.
func (c Config) NewRanker(opts ...ranking.Option) *ranking.Ranker {
	base := []ranking.Option{
		ranking.WithMaxDistance(c.Ranking.MaxDistanceMeters),
		ranking.WithTieBreak(c.Ranking.TieBreakMeters),
	}
	return ranking.NewRanker(c.Ranking.Weights, append(base, opts...)...)
}
