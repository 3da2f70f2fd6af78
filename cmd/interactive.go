package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/scanfold/pkg/config"
	"github.com/user/scanfold/pkg/engine"
	"github.com/user/scanfold/pkg/plugins"
)

const shellHelp = `Commands:
  load <file> [plugin]   parse a report into the graph
  show [format]          print the graph (table, json, yaml, report)
  stats                  count hosts, services and findings
  save <file>            write a JSON snapshot
  open <file>            replace the graph with a snapshot
  reset                  start from an empty graph
  plugins                list report plugins
  help                   show this text
  quit | exit            leave`

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start an interactive session over one host graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry(settings)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "---------------------------------------------------------")
		fmt.Fprintln(out, "scanfold interactive session. Type 'help' for commands.")
		fmt.Fprintln(out, "Example: 'load msf-export.xml' then 'show report'")
		fmt.Fprintln(out, "---------------------------------------------------------")
		return runShell(cmd.Context(), cmd.InOrStdin(), out, reg)
	},
}

type shell struct {
	reg   *plugins.Registry
	graph *engine.UnifiedGraph
	out   io.Writer
}

// runShell reads commands from in until EOF or quit.
func runShell(ctx context.Context, in io.Reader, out io.Writer, reg *plugins.Registry) error {
	sh := &shell{reg: reg, graph: engine.NewUnifiedGraph(), out: out}
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			break
		}
		if err := sh.exec(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func (sh *shell) exec(ctx context.Context, name string, args []string) error {
	switch name {
	case "load":
		if len(args) == 0 {
			return fmt.Errorf("usage: load <file> [plugin]")
		}
		return sh.load(ctx, args[0], args[1:])
	case "show":
		format := settings.Output
		if len(args) > 0 {
			format = strings.ToLower(args[0])
		}
		if !contains(config.OutputFormats, format) {
			return fmt.Errorf("unknown format %q", format)
		}
		return render(sh.out, sh.graph, format)
	case "stats":
		st := sh.graph.Stats()
		fmt.Fprintf(sh.out, "hosts=%d services=%d vulns=%d web=%d notes=%d credentials=%d\n",
			st.Hosts, st.Services, st.Vulns, st.WebVulns, st.Notes, st.Credentials)
		for _, sev := range []engine.Severity{engine.SeverityCritical, engine.SeverityHigh, engine.SeverityMedium, engine.SeverityLow, engine.SeverityInfo} {
			if n := st.BySeverity[sev]; n > 0 {
				fmt.Fprintf(sh.out, "  %s: %d\n", sev, n)
			}
		}
		return nil
	case "save":
		if len(args) != 1 {
			return fmt.Errorf("usage: save <file>")
		}
		if err := sh.graph.SaveSnapshot(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "Snapshot saved to %s\n", args[0])
		return nil
	case "open":
		if len(args) != 1 {
			return fmt.Errorf("usage: open <file>")
		}
		g := engine.NewUnifiedGraph()
		if err := g.LoadSnapshot(args[0]); err != nil {
			return err
		}
		sh.graph = g
		fmt.Fprintf(sh.out, "Loaded %d hosts from %s\n", g.Stats().Hosts, args[0])
		return nil
	case "reset":
		sh.graph = engine.NewUnifiedGraph()
		return nil
	case "plugins":
		renderPlugins(sh.out, sh.reg)
		return nil
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
		return nil
	default:
		return fmt.Errorf("unknown command %q, try 'help'", name)
	}
}

func (sh *shell) load(ctx context.Context, path string, args []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var p plugins.Plugin
	if len(args) > 0 {
		p, err = sh.reg.Get(args[0])
	} else {
		p, err = sh.reg.Detect(data)
	}
	if err != nil {
		return err
	}

	before := sh.graph.Stats().Hosts
	if err := sh.reg.Run(ctx, p, data, sh.graph); err != nil {
		return err
	}
	after := sh.graph.Stats().Hosts
	fmt.Fprintf(sh.out, "[%s] %s: %d hosts in graph (+%d)\n", p.ID(), path, after, after-before)
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}
