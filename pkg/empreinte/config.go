package empreinte

import (
	"os"

	"github.com/himanishpuri/Empreinte/internal/config"
	"github.com/himanishpuri/Empreinte/internal/storage"
)

// PipelineConfig holds the fingerprinting and matching tunables.
type PipelineConfig = config.Config

// Strategy names accepted by WithStrategy.
const (
	StrategyOffsetAlignment = config.StrategyOffsetAlignment
	StrategyHashCount       = config.StrategyHashCount
)

// DefaultPipelineConfig returns the 44.1 kHz reference configuration.
func DefaultPipelineConfig() PipelineConfig {
	return config.Default()
}

// PipelineConfigFromEnv overlays PREFIX_* environment variables, e.g.
// EMPREINTE_MIN_MATCHES, on the defaults.
func PipelineConfigFromEnv(prefix string) (PipelineConfig, error) {
	return config.FromEnv(prefix, config.Default())
}

type Config struct {
	DBPath   string
	Backend  string
	TempDir  string
	Logger   Logger
	Index    Index
	Pipeline PipelineConfig
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithBackend selects "sqlite" (default), "badger" or "memory".
func WithBackend(backend string) Option {
	return func(c *Config) {
		c.Backend = backend
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithIndex overrides the backend selection with a ready index. The
// service takes ownership and closes it.
func WithIndex(index Index) Option {
	return func(c *Config) {
		c.Index = index
	}
}

func WithConfig(cfg PipelineConfig) Option {
	return func(c *Config) {
		c.Pipeline = cfg
	}
}

// WithStrategy selects "offset" (default) or "hashcount" matching.
func WithStrategy(strategy string) Option {
	return func(c *Config) {
		c.Pipeline.Strategy = strategy
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:   storage.DefaultDBFile,
		Backend:  storage.BackendSQLite,
		TempDir:  os.TempDir(),
		Pipeline: config.Default(),
	}
}
