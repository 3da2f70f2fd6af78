package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Keys accepted by Set, also used for flags and SCANFOLD_* variables.
const (
	KeyQueryEngine     = "query_engine"
	KeyResolverOffline = "resolver.offline"
	KeyResolverTimeout = "resolver.timeout"
	KeyResolverCache   = "resolver.cache_size"
	KeyOutput          = "output"
	KeyLogLevel        = "log_level"
	KeyConcurrency     = "concurrency"
)

const (
	configDirName       = ".scanfold"
	configFileName      = "config.yaml"
	defaultResolverTime = 3 * time.Second
)

var (
	OutputFormats = []string{"table", "json", "yaml", "report"}
	QueryEngines  = []string{"xpath", "scan"}
	LogLevels     = []string{"debug", "info", "warn", "error"}
)

type ResolverConfig struct {
	Offline   bool          `yaml:"offline"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
}

type Config struct {
	QueryEngine string         `yaml:"query_engine"`
	Resolver    ResolverConfig `yaml:"resolver"`
	Output      string         `yaml:"output"`
	LogLevel    string         `yaml:"log_level"`
	Concurrency int            `yaml:"concurrency"`
}

// Default is the configuration used when no file exists.
func Default() *Config {
	return &Config{
		QueryEngine: "xpath",
		Resolver: ResolverConfig{
			Timeout:   defaultResolverTime,
			CacheSize: 1024,
		},
		Output:      "table",
		LogLevel:    "info",
		Concurrency: 4,
	}
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFileName), nil
}

func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom reads path on top of the defaults. A missing file is not an
// error.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read config")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigTo(path, cfg)
}

func SaveConfigTo(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func oneOf(key, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

func (c *Config) Validate() error {
	if err := oneOf(KeyQueryEngine, c.QueryEngine, QueryEngines); err != nil {
		return err
	}
	if err := oneOf(KeyOutput, c.Output, OutputFormats); err != nil {
		return err
	}
	if err := oneOf(KeyLogLevel, c.LogLevel, LogLevels); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return errors.Errorf("%s must be positive, got %d", KeyConcurrency, c.Concurrency)
	}
	if c.Resolver.Timeout < 0 {
		return errors.Errorf("%s must not be negative", KeyResolverTimeout)
	}
	if c.Resolver.CacheSize < 0 {
		return errors.Errorf("%s must not be negative", KeyResolverCache)
	}
	return nil
}

// Set assigns one key from its string form and validates the result.
func (c *Config) Set(key, value string) error {
	next := *c
	value = strings.TrimSpace(value)

	switch key {
	case KeyQueryEngine:
		next.QueryEngine = strings.ToLower(value)
	case KeyOutput:
		next.Output = strings.ToLower(value)
	case KeyLogLevel:
		next.LogLevel = strings.ToLower(value)
	case KeyResolverOffline:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		next.Resolver.Offline = b
	case KeyResolverTimeout:
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		next.Resolver.Timeout = d
	case KeyResolverCache:
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		next.Resolver.CacheSize = n
	case KeyConcurrency:
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		next.Concurrency = n
	default:
		return errors.Errorf("unknown config key %q", key)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Values returns every key with its current value, sorted by key.
func (c *Config) Values() [][2]string {
	values := map[string]string{
		KeyQueryEngine:     c.QueryEngine,
		KeyResolverOffline: strconv.FormatBool(c.Resolver.Offline),
		KeyResolverTimeout: c.Resolver.Timeout.String(),
		KeyResolverCache:   strconv.Itoa(c.Resolver.CacheSize),
		KeyOutput:          c.Output,
		KeyLogLevel:        c.LogLevel,
		KeyConcurrency:     strconv.Itoa(c.Concurrency),
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, values[k]})
	}
	return out
}

func (c *Config) String() string {
	var b strings.Builder
	for _, kv := range c.Values() {
		fmt.Fprintf(&b, "%s: %s\n", kv[0], kv[1])
	}
	return b.String()
}
