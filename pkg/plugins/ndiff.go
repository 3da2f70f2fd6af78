package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/scanfold/pkg/engine"
	"github.com/user/scanfold/pkg/xmltree"
)

var ndiffPort = struct {
	ID, State xmltree.Field
}{
	ID:    xmltree.Attribute(".", "portid", "").Trimmed(),
	State: xmltree.Attribute("state", "state", "").Trimmed(),
}

// address lookups tried in order
var ndiffAddress = []xmltree.Field{
	xmltree.Attribute("address[@addrtype='ipv4']", "addr", "").Trimmed(),
	xmltree.Attribute("address[@addrtype='ipv6']", "addr", "").Trimmed(),
	xmltree.Attribute("address", "addr", "").Trimmed(),
}

var ndiffRefs = []string{"Ndiff tool"}

// Ndiff reads the XML comparison of two nmap runs and reports hosts and
// ports that appeared in the second one.
type Ndiff struct {
	q xmltree.Querier
}

func NewNdiff(q xmltree.Querier) *Ndiff {
	return &Ndiff{q: q}
}

func (d *Ndiff) ID() string { return "ndiff" }

func (d *Ndiff) Name() string { return "ndiff" }

func (d *Ndiff) Description() string {
	return "New hosts and newly opened ports between two nmap scans."
}

func (d *Ndiff) Identifiers() []string {
	return []string{"nmapdiff"}
}

func (d *Ndiff) Parse(_ context.Context, data []byte) []engine.HostReport {
	root := parseDocument(d.ID(), data, d.q)
	if root == nil {
		return nil
	}

	var reports []engine.HostReport
	for _, diff := range root.FindAll("scandiff/hostdiff") {
		if r, ok := d.hostDiff(diff); ok {
			reports = append(reports, r)
		}
	}
	return reports
}

func (d *Ndiff) hostDiff(diff *xmltree.Node) (engine.HostReport, bool) {
	host, isNew := diff.FindFirst("host"), false
	if host == nil {
		host, isNew = diff.FindFirst("b/host"), true
	}
	if host == nil {
		slog.Debug("host diff without host element")
		return engine.HostReport{}, false
	}

	var ip string
	for _, f := range ndiffAddress {
		if ip = f.From(host); ip != "" {
			break
		}
	}
	if ip == "" {
		slog.Debug("host diff without address")
		return engine.HostReport{}, false
	}

	var ports []string
	if isNew {
		for _, p := range host.FindAll("ports/port") {
			ports = append(ports, ndiffPortLine(p))
		}
	} else {
		for _, pd := range host.FindAll("ports/portdiff") {
			if added := pd.FindFirst("b/port"); added != nil {
				ports = append(ports, ndiffPortLine(added))
			}
		}
		if len(ports) == 0 {
			return engine.HostReport{}, false
		}
	}

	var desc strings.Builder
	vuln := engine.Vuln{
		Refs:     append([]string(nil), ndiffRefs...),
		Severity: engine.SeverityInfo,
	}
	if isNew {
		vuln.Name = "New host active"
		fmt.Fprintf(&desc, "%s is a NEW host active.\n", ip)
	} else {
		vuln.Name = "New ports actives"
		desc.WriteString("New service/s found.\n")
	}
	for _, line := range ports {
		desc.WriteString(line)
	}
	vuln.Description = desc.String()

	var hostnames []string
	for _, hn := range host.FindAll("hostnames/hostname") {
		if name, ok := hn.Attr("name"); ok && name != "" {
			hostnames = append(hostnames, name)
		}
	}

	return engine.HostReport{
		Host:  engine.Host{IP: ip, Hostnames: hostnames},
		Vulns: []engine.Vuln{vuln},
	}, true
}

func ndiffPortLine(p *xmltree.Node) string {
	return fmt.Sprintf("Port: %s/%s\n", ndiffPort.ID.From(p), ndiffPort.State.From(p))
}
