package engine

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// DiffEntry is one finding located by host and service.
type DiffEntry struct {
	Host    string  `json:"host" yaml:"host"`
	Service string  `json:"service,omitempty" yaml:"service,omitempty"`
	Web     bool    `json:"web" yaml:"web"`
	Finding WebVuln `json:"finding" yaml:"finding"`
}

func (e DiffEntry) key() string {
	f := e.Finding
	return strings.Join([]string{e.Host, e.Service, fmt.Sprint(e.Web), f.Name, f.ExternalID, f.Website, f.Method, f.Path}, "\x00")
}

// SnapshotDiff splits findings into those only in the current graph, those
// only in the baseline and those in both.
type SnapshotDiff struct {
	New       []DiffEntry `json:"new" yaml:"new"`
	Fixed     []DiffEntry `json:"fixed" yaml:"fixed"`
	Unchanged []DiffEntry `json:"unchanged" yaml:"unchanged"`
}

// entries flattens every finding in the graph. Ids are ignored so graphs
// built in different sessions compare by content.
func (g *UnifiedGraph) entries() []DiffEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []DiffEntry
	for _, h := range g.Hosts {
		for _, v := range h.Vulns {
			out = append(out, DiffEntry{Host: h.Host.IP, Web: v.Web, Finding: v.Finding})
		}
		for _, s := range h.Services {
			svc := strings.Join(s.Service.Ports, ",") + "/" + s.Service.Protocol
			for _, v := range s.Vulns {
				out = append(out, DiffEntry{Host: h.Host.IP, Service: svc, Web: v.Web, Finding: v.Finding})
			}
		}
	}
	return out
}

// CompareSnapshot compares g against baseline.
func (g *UnifiedGraph) CompareSnapshot(baseline *UnifiedGraph) SnapshotDiff {
	seen := make(map[string]bool)
	for _, e := range baseline.entries() {
		seen[e.key()] = false
	}

	var diff SnapshotDiff
	for _, e := range g.entries() {
		k := e.key()
		if _, ok := seen[k]; ok {
			seen[k] = true
			diff.Unchanged = append(diff.Unchanged, e)
		} else {
			diff.New = append(diff.New, e)
		}
	}
	for _, e := range baseline.entries() {
		if matched := seen[e.key()]; !matched {
			diff.Fixed = append(diff.Fixed, e)
			// duplicates in the baseline are reported once
			seen[e.key()] = true
		}
	}

	for _, list := range [][]DiffEntry{diff.New, diff.Fixed, diff.Unchanged} {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Finding.Severity > list[j].Finding.Severity
		})
	}
	return diff
}

// AtLeast keeps only findings of severity floor or above.
func (d SnapshotDiff) AtLeast(floor Severity) SnapshotDiff {
	keep := func(list []DiffEntry) []DiffEntry {
		var out []DiffEntry
		for _, e := range list {
			if e.Finding.Severity >= floor {
				out = append(out, e)
			}
		}
		return out
	}
	return SnapshotDiff{New: keep(d.New), Fixed: keep(d.Fixed), Unchanged: keep(d.Unchanged)}
}

// WriteText prints the diff, listing at most limit unchanged findings.
func (d SnapshotDiff) WriteText(w io.Writer, limit int) error {
	var sb strings.Builder
	line := func(mark string, e DiffEntry) {
		where := e.Host
		if e.Service != "" {
			where += " " + e.Service
		}
		sb.WriteString(fmt.Sprintf("  [%s] [%s] %s (%s)\n", mark, e.Finding.Severity, e.Finding.Name, where))
	}

	sb.WriteString(fmt.Sprintf("NEW RISKS: %d\n", len(d.New)))
	for _, e := range d.New {
		line("+", e)
	}
	sb.WriteString(fmt.Sprintf("\nFIXED RISKS: %d\n", len(d.Fixed)))
	for _, e := range d.Fixed {
		line("-", e)
	}
	sb.WriteString(fmt.Sprintf("\nUNCHANGED RISKS: %d\n", len(d.Unchanged)))
	for i, e := range d.Unchanged {
		if i == limit {
			sb.WriteString(fmt.Sprintf("  ... and %d more.\n", len(d.Unchanged)-limit))
			break
		}
		line("=", e)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
