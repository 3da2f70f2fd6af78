package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/user/scanfold/pkg/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		cfg, err := config.LoadConfigFrom(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := runSetup(cmd.InOrStdin(), out, cfg); err != nil {
			return err
		}

		fmt.Fprintln(out, "\nSaving configuration...")
		if err := config.SaveConfigTo(path, cfg); err != nil {
			return err
		}
		fmt.Fprintln(out, "---------------------------------")
		fmt.Fprintln(out, "Setup Complete!")
		fmt.Fprint(out, cfg)
		fmt.Fprintln(out, "You can now run 'scanfold ingest <report.xml>'")
		return nil
	},
}

// runSetup walks through the settings, keeping the current value on an
// empty answer.
func runSetup(in io.Reader, out io.Writer, cfg *config.Config) error {
	scanner := bufio.NewScanner(in)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}

	fmt.Fprintln(out, "Welcome to the scanfold setup wizard")
	fmt.Fprintln(out, "---------------------------------")

	// 1. Query engine
	fmt.Fprintln(out, "Step 1: Choose how report paths are evaluated")
	fmt.Fprintln(out, "1. xpath (compiled XPath expressions)")
	fmt.Fprintln(out, "2. scan (plain child walk)")
	switch choice := strings.ToLower(ask(fmt.Sprintf("Enter number or name [%s] > ", cfg.QueryEngine))); choice {
	case "":
	case "1", "xpath":
		cfg.QueryEngine = "xpath"
	case "2", "scan":
		cfg.QueryEngine = "scan"
	default:
		return errors.Errorf("invalid query engine %q", choice)
	}

	// 2. Resolver
	current := "Y/n"
	if cfg.Resolver.Offline {
		current = "y/N"
	}
	fmt.Fprintln(out, "\nStep 2: Hostname resolution for ZAP sites")
	switch answer := strings.ToLower(ask(fmt.Sprintf("Resolve hostnames over DNS? [%s] > ", current))); answer {
	case "":
	case "y", "yes":
		cfg.Resolver.Offline = false
	case "n", "no":
		cfg.Resolver.Offline = true
	default:
		return errors.Errorf("invalid answer %q", answer)
	}
	if !cfg.Resolver.Offline {
		if v := ask(fmt.Sprintf("Lookup timeout [%s] > ", cfg.Resolver.Timeout)); v != "" {
			if err := cfg.Set(config.KeyResolverTimeout, v); err != nil {
				return err
			}
		}
	}

	// 3. Output
	fmt.Fprintln(out, "\nStep 3: Default output format")
	for i, f := range config.OutputFormats {
		fmt.Fprintf(out, "%d. %s\n", i+1, f)
	}
	if v := strings.ToLower(ask(fmt.Sprintf("Enter number or name [%s] > ", cfg.Output))); v != "" {
		for i, f := range config.OutputFormats {
			if v == fmt.Sprint(i+1) {
				v = f
			}
		}
		if err := cfg.Set(config.KeyOutput, v); err != nil {
			return err
		}
	}

	// 4. Concurrency
	fmt.Fprintln(out, "\nStep 4: Reports parsed in parallel")
	if v := ask(fmt.Sprintf("Concurrency [%d] > ", cfg.Concurrency)); v != "" {
		if err := cfg.Set(config.KeyConcurrency, v); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
