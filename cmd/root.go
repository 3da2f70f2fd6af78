package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/user/scanfold/pkg/config"
	"github.com/user/scanfold/pkg/plugins"
	"github.com/user/scanfold/pkg/resolve"
	"github.com/user/scanfold/pkg/xmltree"
)

const envPrefix = "SCANFOLD"

var (
	cfgFile   string
	DebugMode bool

	// settings is the effective configuration of the running command.
	settings = config.Default()
)

// flags that override a config key
var flagKeys = map[string]string{
	"query-engine":    config.KeyQueryEngine,
	"offline":         config.KeyResolverOffline,
	"resolve-timeout": config.KeyResolverTimeout,
	"cache-size":      config.KeyResolverCache,
	"output":          config.KeyOutput,
	"log-level":       config.KeyLogLevel,
	"concurrency":     config.KeyConcurrency,
}

var rootCmd = &cobra.Command{
	Use:          "scanfold",
	Short:        "Normalize security scanner reports into one host graph",
	SilenceUsage: true,
	Long: `scanfold reads XML reports from Metasploit, ndiff, QualysGuard and OWASP ZAP
and folds them into a single graph of hosts, interfaces, services,
vulnerabilities, notes and credentials.

Settings are read from ~/.scanfold/config.yaml, then SCANFOLD_* environment
variables, then command line flags.`,
	Example: `  # Detect the format of each report and print a host table
  scanfold ingest msf-export.xml zap-report.xml

  # Show the sink calls a report would produce
  scanfold ingest --dry-run ndiff.xml

  # Keep the graph for later
  scanfold ingest -o yaml --snapshot graph.json qualys.xml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		settings = cfg
		initLogger(parseLevel(cfg.LogLevel))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ~/.scanfold/config.yaml)")
	flags.BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn, error")
	flags.String("query-engine", "", "Path engine: xpath or scan")
	flags.Bool("offline", false, "Never resolve hostnames over DNS")
	flags.Duration("resolve-timeout", 0, "Timeout of a single hostname lookup")
	flags.Int("cache-size", 0, "Number of remembered hostname lookups")
	flags.StringP("output", "o", "", "Output format: table, json, yaml, report")
	flags.Int("concurrency", 0, "Reports parsed in parallel")
}

// initLogger installs a tint handler on stderr as the default logger.
func initLogger(level slog.Leveler) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}

func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.GetConfigPath()
}

// loadSettings layers the config file, the environment and the flags.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	initializeConfig(cmd)

	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfigFrom(path)
	if err != nil {
		return nil, err
	}

	var setErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || setErr != nil {
			return
		}
		if err := cfg.Set(key, f.Value.String()); err != nil {
			setErr = fmt.Errorf("--%s: %w", f.Name, err)
		}
	})
	if setErr != nil {
		return nil, setErr
	}
	if DebugMode {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func initializeConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(envPrefix)
	// Environment variables can't have dashes in them, so --query-engine
	// becomes SCANFOLD_QUERY_ENGINE.
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	bindFlags(cmd)
}

// Bind each cobra flag to its associated viper configuration (environment variable)
func bindFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && viper.IsSet(f.Name) {
			val := viper.Get(f.Name)
			cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)) // nolint: errcheck
		}
		if err := viper.BindPFlag(f.Name, f); err != nil {
			slog.Error("could not bind flag to viper", "err", err)
		}
	})
}

// newRegistry builds the plugin registry from the effective settings.
func newRegistry(cfg *config.Config) (*plugins.Registry, error) {
	q, err := xmltree.NewQuerier(cfg.QueryEngine)
	if err != nil {
		return nil, err
	}
	res := resolve.New(
		resolve.WithOffline(cfg.Resolver.Offline),
		resolve.WithTimeout(cfg.Resolver.Timeout),
		resolve.WithCacheSize(cfg.Resolver.CacheSize),
	)
	return plugins.NewRegistry(plugins.Options{Querier: q, Resolver: res}), nil
}
