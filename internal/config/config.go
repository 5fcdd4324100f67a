// Package config handles configuration loading.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/bryan-buckman/pushfeed/internal/logger"
	"github.com/bryan-buckman/pushfeed/internal/model"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig selects the update store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" kong:"help='Database driver (sqlite/postgres)',default='sqlite',enum='sqlite,postgres',env='PUSHFEED_DATABASE_DRIVER'"`
	DSN    string `yaml:"dsn" kong:"help='SQLite path or PostgreSQL connection string',default='pushfeed.db',env='PUSHFEED_DATABASE_DSN'"`
}

// IngestConfig controls the push endpoint.
type IngestConfig struct {
	Prefix       string `yaml:"prefix" kong:"help='Path prefix of the push callback',default='/subscriber'"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" kong:"help='Largest accepted push body in bytes',default='10485760'"`
}

// ItemsConfig bounds the num_entries parameter of /items.
type ItemsConfig struct {
	Min     int `yaml:"min" kong:"help='Smallest page size',default='1'"`
	Max     int `yaml:"max" kong:"help='Largest page size',default='100'"`
	Default int `yaml:"default" kong:"help='Page size when none is given',default='25'"`
}

// RetentionConfig controls the sweeper.
type RetentionConfig struct {
	Keep int `yaml:"keep" kong:"help='Updates kept by a sweep',default='50000'"`
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level      string `yaml:"level" kong:"help='Log level (debug/info/warn/error)',default='info',env='PUSHFEED_LOG_LEVEL'"`
	File       string `yaml:"file" kong:"help='Log file path, empty for stderr only'"`
	MaxSize    int    `yaml:"max_size" kong:"help='Log file size in MB before rotation',default='64'"`
	MaxBackups int    `yaml:"max_backups" kong:"help='Rotated log files to keep',default='3'"`
	MaxAge     int    `yaml:"max_age" kong:"help='Days to keep rotated log files',default='7'"`
}

// ServerConfig holds HTTP server timeouts.
type ServerConfig struct {
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds" kong:"help='HTTP read timeout in seconds',default='30'"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds" kong:"help='HTTP write timeout in seconds',default='30'"`
}

// Settings represents the application configuration.
type Settings struct {
	ListenAddr string          `yaml:"listen_addr" kong:"help='HTTP listen address',default=':8080',env='PUSHFEED_LISTEN_ADDR'"`
	Database   DatabaseConfig  `yaml:"database" kong:"embed,prefix='database.'"`
	Ingest     IngestConfig    `yaml:"ingest" kong:"embed,prefix='ingest.'"`
	Items      ItemsConfig     `yaml:"items" kong:"embed,prefix='items.'"`
	Retention  RetentionConfig `yaml:"retention" kong:"embed,prefix='retention.'"`
	Log        LogConfig       `yaml:"log" kong:"embed,prefix='log.'"`
	Server     ServerConfig    `yaml:"server" kong:"embed,prefix='server.'"`
}

// Validate reports settings that cannot work together.
func (s Settings) Validate() error {
	var errs []error
	if !strings.HasPrefix(s.Ingest.Prefix, "/") {
		errs = append(errs, fmt.Errorf("ingest.prefix must start with '/': %q", s.Ingest.Prefix))
	}
	if s.Ingest.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("ingest.max_body_bytes must be positive: %d", s.Ingest.MaxBodyBytes))
	}
	if s.Items.Min < 1 || s.Items.Min > s.Items.Max {
		errs = append(errs, fmt.Errorf("items range invalid: min=%d max=%d", s.Items.Min, s.Items.Max))
	} else if s.Items.Default < s.Items.Min || s.Items.Default > s.Items.Max {
		errs = append(errs, fmt.Errorf("items.default %d outside [%d, %d]", s.Items.Default, s.Items.Min, s.Items.Max))
	}
	if s.Retention.Keep < 0 {
		errs = append(errs, fmt.Errorf("retention.keep must not be negative: %d", s.Retention.Keep))
	}
	return errors.Join(errs...)
}

// ItemsPolicy is the clamp applied to num_entries.
func (s Settings) ItemsPolicy() model.RangePolicy {
	return model.RangePolicy{Min: s.Items.Min, Max: s.Items.Max, Default: s.Items.Default}
}

// Logger converts the log section for logger.Init.
func (s Settings) Logger() logger.Config {
	return logger.Config{
		Level:      s.Log.Level,
		File:       s.Log.File,
		MaxSize:    s.Log.MaxSize,
		MaxBackups: s.Log.MaxBackups,
		MaxAge:     s.Log.MaxAge,
	}
}

func (s Settings) ReadTimeout() time.Duration {
	return time.Duration(s.Server.ReadTimeoutSeconds) * time.Second
}

func (s Settings) WriteTimeout() time.Duration {
	return time.Duration(s.Server.WriteTimeoutSeconds) * time.Second
}

// NewParser builds a kong parser for cli that resolves unset flags from the
// YAML files in paths. Missing files are skipped. A kong.ConfigFlag field in
// cli loads one more file at parse time.
func NewParser(cli any, paths []string, options ...kong.Option) (*kong.Kong, error) {
	var existing []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	options = append([]kong.Option{kong.Configuration(yamlKongLoader, existing...)}, options...)
	return kong.New(cli, options...)
}

// Load reads settings from the YAML file at path, falling back to the
// defaults declared on Settings.
func Load(path string) (*Settings, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}
	var cfg Settings
	parser, err := NewParser(&cfg, []string{path})
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse([]string{}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func yamlKongLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		name := strings.ReplaceAll(flag.Name, "-", "_")
		if v, ok := values[name]; ok {
			return v, nil
		}

		// Nested sections use dotted flag names: database.dsn.
		parts := strings.Split(name, ".")
		if len(parts) < 2 {
			return nil, nil
		}
		curr := values
		for _, part := range parts[:len(parts)-1] {
			next, ok := curr[part].(map[string]any)
			if !ok {
				return nil, nil
			}
			curr = next
		}
		if v, ok := curr[parts[len(parts)-1]]; ok {
			return v, nil
		}
		return nil, nil
	}
	return f, nil
}
