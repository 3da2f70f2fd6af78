package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"github.com/user/scanfold/pkg/engine"
	"gopkg.in/yaml.v3"
)

var (
	diffLimit       int
	diffMinSeverity string
)

var diffCmd = &cobra.Command{
	Use:   "diff <baseline.json> <current.json>",
	Short: "Compare two graph snapshots",
	Long: `Compare two snapshots written by 'ingest --snapshot' or the interactive
'save' command and list new, fixed and unchanged findings.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiff(cmd.OutOrStdout(), args[0], args[1], settings.Output, diffLimit, diffMinSeverity)
	},
}

// runDiff prints the diff of two snapshots. minSeverity is a severity label
// such as "med" or "high"; an empty label keeps every finding.
func runDiff(w io.Writer, baselinePath, currentPath, format string, limit int, minSeverity string) error {
	baseline := engine.NewUnifiedGraph()
	if err := baseline.LoadSnapshot(baselinePath); err != nil {
		return err
	}
	current := engine.NewUnifiedGraph()
	if err := current.LoadSnapshot(currentPath); err != nil {
		return err
	}

	diff := current.CompareSnapshot(baseline)
	if minSeverity != "" {
		diff = diff.AtLeast(engine.ParseSeverity(minSeverity))
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(diff); err != nil {
			return err
		}
		return enc.Close()
	default:
		return diff.WriteText(w, limit)
	}
}

func init() {
	diffCmd.Flags().IntVar(&diffLimit, "limit", 10, "Unchanged findings to list")
	diffCmd.Flags().StringVar(&diffMinSeverity, "min-severity", "", "Hide findings below this severity (info, low, med, high, critical)")
	rootCmd.AddCommand(diffCmd)
}
