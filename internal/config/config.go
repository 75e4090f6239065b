// Package config loads the YAML settings shared by the CLI and the server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/AyaScan/pkg/ayascan"
	"github.com/himanishpuri/AyaScan/pkg/ayascan/storage"
	"github.com/himanishpuri/AyaScan/pkg/logger"
)

const (
	EnvConfigPath = "AYASCAN_CONFIG"
	EnvDBPath     = "AYASCAN_DB_PATH"
	EnvLogLevel   = "LOG_LEVEL"
)

type Config struct {
	DB       string `yaml:"db"`
	LogLevel string `yaml:"log_level"`

	Recognition RecognitionConfig `yaml:"recognition"`
	OCR         OCRConfig         `yaml:"ocr"`
	Camera      CameraConfig      `yaml:"camera"`
	Server      ServerConfig      `yaml:"server"`
}

type RecognitionConfig struct {
	WindowSize       int     `yaml:"window_size"`
	Threshold        int     `yaml:"threshold"`
	InnerRadiusRatio float64 `yaml:"inner_radius_ratio"`
}

type OCRConfig struct {
	Languages []string `yaml:"languages"`
	Whitelist *string  `yaml:"whitelist"`
}

type CameraConfig struct {
	Input    string  `yaml:"input"`
	Format   string  `yaml:"format"`
	FPS      float64 `yaml:"fps"`
	Rotation int     `yaml:"rotation"`
	Realtime bool    `yaml:"realtime"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

func Default() *Config {
	return &Config{
		DB:       storage.DefaultDBFile,
		LogLevel: "info",
		Recognition: RecognitionConfig{
			WindowSize:       5,
			Threshold:        3,
			InnerRadiusRatio: 0.20,
		},
		OCR: OCRConfig{
			Languages: []string{"eng"},
		},
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
		},
	}
}

// Load reads path on top of the defaults and then applies environment
// overrides. An empty path falls back to $AYASCAN_CONFIG; with neither set
// only defaults and environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults without touching the environment.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(r); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	data = []byte(os.ExpandEnv(string(data)))

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.DB = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DB) == "" {
		errs = append(errs, errors.New("db must not be empty"))
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}

	r := c.Recognition
	if r.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("recognition.window_size must be positive, got %d", r.WindowSize))
	}
	if r.Threshold < 1 || r.Threshold > r.WindowSize {
		errs = append(errs, fmt.Errorf("recognition.threshold must be between 1 and window_size, got %d", r.Threshold))
	}
	if r.InnerRadiusRatio < 0 || r.InnerRadiusRatio >= 1 {
		errs = append(errs, fmt.Errorf("recognition.inner_radius_ratio must be in [0, 1), got %v", r.InnerRadiusRatio))
	}
	if c.Camera.FPS < 0 {
		errs = append(errs, fmt.Errorf("camera.fps must not be negative, got %v", c.Camera.FPS))
	}

	return errors.Join(errs...)
}

// Level returns the configured log level.
func (c *Config) Level() logger.LogLevel {
	lvl, _ := logger.ParseLevel(c.LogLevel)
	return lvl
}

// Options translates the recognition settings into service options.
func (c *Config) Options() []ayascan.Option {
	return []ayascan.Option{
		ayascan.WithDBPath(c.DB),
		ayascan.WithWindowSize(c.Recognition.WindowSize),
		ayascan.WithThreshold(c.Recognition.Threshold),
		ayascan.WithInnerRadiusRatio(c.Recognition.InnerRadiusRatio),
	}
}
