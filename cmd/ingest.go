package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/user/scanfold/pkg/engine"
	"github.com/user/scanfold/pkg/plugins"
	"golang.org/x/sync/errgroup"
)

// parsedFile is one report after extraction, before it reaches a sink.
type parsedFile struct {
	Path    string
	Plugin  plugins.Plugin
	Reports []engine.HostReport
}

// parseFiles reads and parses paths with at most limit files in flight.
// An empty or "auto" format detects the plugin per file. The result keeps
// the order of paths.
func parseFiles(ctx context.Context, reg *plugins.Registry, paths []string, format string, limit int) ([]parsedFile, error) {
	var forced plugins.Plugin
	if format != "" && format != "auto" {
		p, err := reg.Get(format)
		if err != nil {
			return nil, err
		}
		forced = p
	}

	out := make([]parsedFile, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path // per-iteration copies (Go < 1.22 loop semantics)
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "could not read %s", path)
			}
			p := forced
			if p == nil {
				if p, err = reg.Detect(data); err != nil {
					return errors.Wrap(err, path)
				}
			}
			slog.Debug("parsing report", "file", path, "plugin", p.ID())
			out[i] = parsedFile{Path: path, Plugin: p, Reports: p.Parse(ctx, data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// emitFiles pushes parsed files into sink one after another.
func emitFiles(ctx context.Context, files []parsedFile, sink engine.Sink) error {
	for _, f := range files {
		slog.Info("ingesting report", "file", f.Path, "plugin", f.Plugin.ID(), "hosts", len(f.Reports))
		if err := engine.Emit(ctx, sink, f.Reports); err != nil {
			return errors.Wrapf(err, "could not ingest %s", f.Path)
		}
	}
	return nil
}

func render(w io.Writer, graph *engine.UnifiedGraph, format string) error {
	switch format {
	case "json":
		return graph.WriteJSON(w)
	case "yaml":
		return graph.WriteYAML(w)
	case "report":
		_, err := io.WriteString(w, graph.GetReport())
		return err
	default:
		graph.RenderTable(w)
		return nil
	}
}

type ingestOptions struct {
	format   string
	dryRun   bool
	base     string
	snapshot string
}

func runIngest(ctx context.Context, w io.Writer, reg *plugins.Registry, paths []string, opts ingestOptions) error {
	files, err := parseFiles(ctx, reg, paths, opts.format, settings.Concurrency)
	if err != nil {
		return err
	}

	if opts.dryRun {
		rec := engine.NewRecorder()
		if err := emitFiles(ctx, files, rec); err != nil {
			return err
		}
		return rec.Dump(w)
	}

	graph := engine.NewUnifiedGraph()
	if opts.base != "" {
		if err := graph.LoadSnapshot(opts.base); err != nil {
			return err
		}
	}
	if err := emitFiles(ctx, files, graph); err != nil {
		return err
	}
	if opts.snapshot != "" {
		if err := graph.SaveSnapshot(opts.snapshot); err != nil {
			return err
		}
		slog.Info("snapshot saved", "path", opts.snapshot)
	}
	return render(w, graph, settings.Output)
}

var ingestOpts ingestOptions

var ingestCmd = &cobra.Command{
	Use:   "ingest <report.xml>...",
	Short: "Parse scanner reports into the host graph",
	Long: `Parse one or more scanner reports and print the resulting host graph.

The plugin is picked from the root element of each file unless --format
names one. Files are parsed concurrently and merged in argument order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry(settings)
		if err != nil {
			return err
		}
		return runIngest(cmd.Context(), cmd.OutOrStdout(), reg, args, ingestOpts)
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestOpts.format, "format", "f", "auto", "Plugin id (metasploit, ndiff, qualysguard, zap) or auto")
	ingestCmd.Flags().BoolVar(&ingestOpts.dryRun, "dry-run", false, "Print the sink calls instead of building a graph")
	ingestCmd.Flags().StringVar(&ingestOpts.base, "base", "", "Snapshot to merge the reports into")
	ingestCmd.Flags().StringVar(&ingestOpts.snapshot, "snapshot", "", "Write the resulting graph to this JSON file")
	rootCmd.AddCommand(ingestCmd)
}
