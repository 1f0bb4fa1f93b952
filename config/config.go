package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/wippyai/dyparser/discovery"
	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/input"
	"github.com/wippyai/dyparser/resource"
	"github.com/wippyai/dyparser/runtime"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "dyparser"

// Config holds all dyparser configuration.
type Config struct {
	PluginDir           string    `toml:"plugin_dir" yaml:"plugin_dir" envconfig:"PLUGIN_DIR"`
	DefaultPlugin       string    `toml:"default_plugin" yaml:"default_plugin" envconfig:"DEFAULT_PLUGIN"`
	CompilationCacheDir string    `toml:"compilation_cache_dir" yaml:"compilation_cache_dir" envconfig:"CACHE_DIR"`
	InputEncoding       string    `toml:"input_encoding" yaml:"input_encoding" envconfig:"INPUT_ENCODING"`
	Log                 LogConfig `toml:"log" yaml:"log" envconfig:"LOG"`
	Timeout             Duration  `toml:"timeout" yaml:"timeout" envconfig:"TIMEOUT"`
	MaxInputSize        int64     `toml:"max_input_size" yaml:"max_input_size" envconfig:"MAX_INPUT_SIZE"`
	MaxSections         int       `toml:"max_sections" yaml:"max_sections" envconfig:"MAX_SECTIONS"`
	MaxCallStack        int       `toml:"max_call_stack" yaml:"max_call_stack" envconfig:"MAX_CALL_STACK"`
	MemoryLimitPages    uint32    `toml:"memory_limit_pages" yaml:"memory_limit_pages" envconfig:"MEMORY_LIMIT_PAGES"`
	EnableWASI          bool      `toml:"enable_wasi" yaml:"enable_wasi" envconfig:"ENABLE_WASI"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `toml:"level" yaml:"level" envconfig:"LEVEL"`
	Development bool   `toml:"development" yaml:"development" envconfig:"DEV"`
}

// Duration is a time.Duration written as "30s" or "1m30s" in every source.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Default returns default configuration.
func Default() *Config {
	rc := runtime.DefaultConfig()
	return &Config{
		DefaultPlugin:    rc.DefaultPlugin,
		InputEncoding:    rc.InputEncoding,
		Timeout:          Duration(rc.Timeout),
		MaxInputSize:     rc.MaxInputSize,
		MaxSections:      rc.MaxSections,
		MaxCallStack:     rc.MaxCallStack,
		MemoryLimitPages: rc.MemoryLimitPages,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the file at path over the defaults, then applies environment
// overrides. An empty path reads only the environment. The format follows
// the extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound(errors.PhaseConfig, "config file", path)
		}
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	case ".yaml", ".yml":
		err = yaml.UnmarshalWithOptions(data, c, yaml.Strict())
	default:
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unsupported config format %q", ext))
	}
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse "+path)
	}
	return nil
}

// Validate rejects values the runtime cannot honor.
func (c *Config) Validate() error {
	switch {
	case !discovery.ValidName(c.DefaultPlugin):
		return invalid("default_plugin %q is not a plugin name", c.DefaultPlugin)
	case c.Timeout < 0:
		return invalid("timeout must not be negative")
	case c.MaxInputSize < 0:
		return invalid("max_input_size must not be negative")
	case c.MaxSections < 0 || c.MaxSections > resource.MaxSlots:
		return invalid("max_sections must be between 0 and %d", resource.MaxSlots)
	case c.MaxCallStack < 0:
		return invalid("max_call_stack must not be negative")
	case c.MemoryLimitPages > 65536:
		return invalid("memory_limit_pages must not exceed 65536")
	}
	if enc := c.InputEncoding; enc != "" && enc != input.Auto {
		if _, err := htmlindex.Get(enc); err != nil {
			return invalid("unknown input_encoding %q", enc)
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return invalid("unknown log level %q", c.Log.Level)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).Detail(format, args...).Build()
}

// Runtime converts c to the runtime configuration.
func (c *Config) Runtime() runtime.Config {
	return runtime.Config{
		DefaultPlugin:       c.DefaultPlugin,
		PluginDir:           c.PluginDir,
		CompilationCacheDir: c.CompilationCacheDir,
		InputEncoding:       c.InputEncoding,
		Timeout:             time.Duration(c.Timeout),
		MaxInputSize:        c.MaxInputSize,
		MaxSections:         c.MaxSections,
		MaxCallStack:        c.MaxCallStack,
		MemoryLimitPages:    c.MemoryLimitPages,
		EnableWASI:          c.EnableWASI,
	}
}

// Build creates a zap logger writing to stderr.
func (l LogConfig) Build() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
