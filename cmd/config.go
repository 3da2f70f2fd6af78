package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/user/scanfold/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration (query engine, resolver, output)",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := configPath()
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, settings)
	},
}

var setConfigCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store one setting in the config file",
	Long: `Store one setting in the config file.

Keys: query_engine, resolver.offline, resolver.timeout, resolver.cache_size,
output, log_level, concurrency.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		// Flags and environment only apply to this run, so start from the file.
		cfg, err := config.LoadConfigFrom(path)
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.SaveConfigTo(path, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s saved to %s\n", args[0], path)
		return nil
	},
}

var pathConfigCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setConfigCmd)
	configCmd.AddCommand(pathConfigCmd)
	rootCmd.AddCommand(configCmd)
}
