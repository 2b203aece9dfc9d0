// Package config loads zombiemap settings from a YAML file and turns them
// into crawler and logger configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/lukemcguire/zombiemap/crawler"
	"github.com/lukemcguire/zombiemap/fetch"
)

// Config is the root of the configuration file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Crawler CrawlerConfig `yaml:"crawler"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the streaming HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigin   string        `yaml:"allowed_origin"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CrawlerConfig configures crawl runs.
type CrawlerConfig struct {
	UserAgent      string        `yaml:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRedirects   int           `yaml:"max_redirects"`
	Concurrency    int           `yaml:"concurrency"`
	RateLimit      int           `yaml:"rate_limit"`   // requests per second, 0 for unlimited
	AdaptiveRTT    time.Duration `yaml:"adaptive_rtt"` // 0 disables adaptive throttling
	MaxRetries     int           `yaml:"max_retries"`  // 0 disables retries
	RetryDelay     time.Duration `yaml:"retry_delay"`
	LowMemory      bool          `yaml:"low_memory"`
	RobotsSitemaps bool          `yaml:"robots_sitemaps"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, logfmt
}

// Default returns the built-in configuration.
func Default() Config {
	retry := fetch.DefaultRetryPolicy()
	return Config{
		Server: ServerConfig{
			Addr:            ":5200",
			AllowedOrigin:   "*",
			ShutdownTimeout: 10 * time.Second,
		},
		Crawler: CrawlerConfig{
			UserAgent:      fetch.DefaultUserAgent,
			RequestTimeout: fetch.DefaultTimeout,
			MaxRedirects:   fetch.DefaultMaxRedirects,
			Concurrency:    1,
			MaxRetries:     retry.MaxRetries,
			RetryDelay:     retry.BaseDelay,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}
	if c.Crawler.RequestTimeout <= 0 {
		errs = append(errs, errors.New("crawler.request_timeout must be positive"))
	}
	if c.Crawler.MaxRedirects < 0 {
		errs = append(errs, errors.New("crawler.max_redirects must not be negative"))
	}
	if c.Crawler.Concurrency < 1 {
		errs = append(errs, errors.New("crawler.concurrency must be at least 1"))
	}
	if c.Crawler.RateLimit < 0 {
		errs = append(errs, errors.New("crawler.rate_limit must not be negative"))
	}
	if c.Crawler.MaxRetries < 0 {
		errs = append(errs, errors.New("crawler.max_retries must not be negative"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := formatter(c.Log.Format); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// CrawlerConfig converts the crawler section into a crawler.Config.
func (c Config) CrawlerConfig(logger *log.Logger) crawler.Config {
	retry := fetch.RetryPolicy{MaxRetries: -1}
	if c.Crawler.MaxRetries > 0 {
		retry = fetch.RetryPolicy{
			MaxRetries: c.Crawler.MaxRetries,
			BaseDelay:  c.Crawler.RetryDelay,
		}
	}

	return crawler.Config{
		UserAgent:      c.Crawler.UserAgent,
		RequestTimeout: c.Crawler.RequestTimeout,
		MaxRedirects:   c.Crawler.MaxRedirects,
		Concurrency:    c.Crawler.Concurrency,
		RateLimit:      c.Crawler.RateLimit,
		AdaptiveRTT:    c.Crawler.AdaptiveRTT,
		RetryPolicy:    retry,
		LowMemory:      c.Crawler.LowMemory,
		RobotsSitemaps: c.Crawler.RobotsSitemaps,
		Logger:         logger,
	}
}

// NewLogger builds a logger writing to w at the configured level and format.
func (c Config) NewLogger(w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	f, err := formatter(c.Log.Format)
	if err != nil {
		return nil, err
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       f,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	}), nil
}

func formatter(name string) (log.Formatter, error) {
	switch name {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("log.format: unknown format %q", name)
	}
}
