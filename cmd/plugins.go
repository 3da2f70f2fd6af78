package cmd

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/user/scanfold/pkg/plugins"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the available report plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry(settings)
		if err != nil {
			return err
		}
		renderPlugins(cmd.OutOrStdout(), reg)
		return nil
	},
}

func renderPlugins(w io.Writer, reg *plugins.Registry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Root elements", "Description"})
	for _, p := range reg.List() {
		t.AppendRow(table.Row{p.ID(), p.Name(), strings.Join(p.Identifiers(), ", "), p.Description()})
	}
	t.Render()
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}
