package ayascan

import (
	"github.com/himanishpuri/AyaScan/pkg/ayascan/extractor"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/stabilizer"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/storage"
)

type Config struct {
	DBPath           string
	WindowSize       int
	Threshold        int
	InnerRadiusRatio float64
	Logger           Logger
	Storage          Storage
	Recognizer       Recognizer
}

type Option func(*Config)

// WithDBPath selects the history database: a SQLite file path or a
// postgres:// URL.
func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithWindowSize(size int) Option {
	return func(c *Config) {
		c.WindowSize = size
	}
}

func WithThreshold(threshold int) Option {
	return func(c *Config) {
		c.Threshold = threshold
	}
}

func WithInnerRadiusRatio(ratio float64) Option {
	return func(c *Config) {
		c.InnerRadiusRatio = ratio
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithStorage injects an already opened store. The caller keeps ownership
// and closes it.
func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithRecognizer(r Recognizer) Option {
	return func(c *Config) {
		c.Recognizer = r
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:           storage.DefaultDBFile,
		WindowSize:       stabilizer.DefaultWindowSize,
		Threshold:        stabilizer.DefaultThreshold,
		InnerRadiusRatio: extractor.DefaultInnerRadiusRatio,
	}
}

func buildConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
