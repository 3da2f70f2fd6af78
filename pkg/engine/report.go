package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderTable prints one row per host with service and finding counts.
func (g *UnifiedGraph) RenderTable(w io.Writer) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"Host", "OS", "Hostnames", "Services", "Vulns", "Critical", "High", "Med", "Low", "Info"})

	var total [5]int
	for _, h := range g.Hosts {
		var sev [5]int
		vulns := 0
		tally := func(vs []*VulnNode) {
			for _, v := range vs {
				sev[v.Finding.Severity]++
				vulns++
			}
		}
		tally(h.Vulns)
		for _, s := range h.Services {
			tally(s.Vulns)
		}
		for i := range sev {
			total[i] += sev[i]
		}
		t.AppendRow(table.Row{
			h.Host.IP, h.Host.OS, strings.Join(h.Host.Hostnames, ", "), len(h.Services), vulns,
			sev[SeverityCritical], sev[SeverityHigh], sev[SeverityMedium], sev[SeverityLow], sev[SeverityInfo],
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d hosts", len(g.Hosts)), "", "", "", "",
		total[SeverityCritical], total[SeverityHigh], total[SeverityMedium], total[SeverityLow], total[SeverityInfo],
	})
	t.Render()
}
