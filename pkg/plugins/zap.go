package plugins

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/user/scanfold/pkg/engine"
	"github.com/user/scanfold/pkg/resolve"
	"github.com/user/scanfold/pkg/uri"
	"github.com/user/scanfold/pkg/xmltree"
)

var (
	zapSite = struct {
		Host, Port xmltree.Field
	}{
		Host: xmltree.Attribute(".", "host", "").Trimmed(),
		Port: xmltree.Attribute(".", "port", "").Trimmed(),
	}

	zapAlert = struct {
		Alert, Name, Risk, Desc, Solution, Reference, CWE, PluginID xmltree.Field
	}{
		Alert:     xmltree.Text("alert", ""),
		Name:      xmltree.Text("name", ""),
		Risk:      xmltree.Text("riskcode", "").Trimmed(),
		Desc:      xmltree.Text("desc", ""),
		Solution:  xmltree.Text("solution", ""),
		Reference: xmltree.Text("reference", ""),
		CWE:       xmltree.Text("cweid", "").Trimmed(),
		PluginID:  xmltree.Text("pluginid", "").Trimmed(),
	}

	zapInstance = struct {
		URI, Method xmltree.Field
	}{
		URI:    xmltree.Text("uri", "").Trimmed(),
		Method: xmltree.Text("method", "").Trimmed(),
	}
)

// Zap reads OWASP ZAP XML reports.
type Zap struct {
	q        xmltree.Querier
	resolver resolve.Resolver
}

// NewZap builds the extractor. A nil resolver means resolve.New().
func NewZap(q xmltree.Querier, r resolve.Resolver) *Zap {
	if r == nil {
		r = resolve.New()
	}
	return &Zap{q: q, resolver: r}
}

func (z *Zap) ID() string { return "zap" }

func (z *Zap) Name() string { return "Zap XML Output Plugin" }

func (z *Zap) Description() string {
	return "Web alerts per site from an OWASP ZAP report."
}

func (z *Zap) Identifiers() []string {
	return []string{"OWASPZAPReport"}
}

func (z *Zap) Parse(ctx context.Context, data []byte) []engine.HostReport {
	root := parseDocument(z.ID(), data, z.q, xmltree.WithASCII())
	if root == nil {
		return nil
	}

	var reports []engine.HostReport
	for _, site := range root.FindAll("site") {
		host := zapSite.Host.From(site)
		if host == "" {
			slog.Debug("zap site without host")
			continue
		}
		reports = append(reports, z.site(ctx, site, host))
	}
	return reports
}

func (z *Zap) site(ctx context.Context, site *xmltree.Node, host string) engine.HostReport {
	ip := z.resolver.Resolve(ctx, host)

	r := engine.HostReport{
		Host:      engine.Host{IP: ip},
		Interface: &engine.Interface{Name: ip},
	}
	if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() == nil {
		r.Interface.IPv6 = ip
	} else {
		r.Interface.IPv4 = ip
	}
	if host != ip {
		r.Host.Hostnames = []string{host}
		r.Interface.HostnameResolution = []string{host}
	}

	svc := engine.ServiceReport{
		Service: engine.Service{
			Name:     "http",
			Protocol: "tcp",
			Ports:    []string{zapSite.Port.From(site)},
			Status:   "open",
		},
		Websites: []string{host},
	}
	for _, alert := range site.FindAll("alerts/alertitem") {
		svc.Findings = append(svc.Findings, zapFinding(alert, host))
	}
	r.Services = []engine.ServiceReport{svc}
	return r
}

func zapFinding(alert *xmltree.Node, website string) engine.WebVuln {
	desc := zapAlert.Desc.From(alert)
	if ref := zapAlert.Reference.From(alert); ref != "" {
		desc += "\nReference: " + ref
	}

	var refs []string
	if cwe, err := strconv.Atoi(zapAlert.CWE.From(alert)); err == nil && cwe > 0 {
		refs = append(refs, "CWE-"+strconv.Itoa(cwe))
	}

	v := engine.WebVuln{
		Vuln: engine.Vuln{
			Name:        firstNonEmpty(zapAlert.Alert.From(alert), zapAlert.Name.From(alert)),
			Description: desc,
			Refs:        refs,
			Severity:    engine.ZapScale.Normalize(zapAlert.Risk.From(alert)),
			Resolution:  zapAlert.Solution.From(alert),
			ExternalID:  zapAlert.PluginID.From(alert),
		},
		Website: website,
	}

	instances := alert.FindAll("instances/instance")
	if len(instances) == 0 {
		instances = []*xmltree.Node{alert}
	}

	var (
		requests []string
		seen     = make(map[string]bool)
		first    = true
	)
	for _, inst := range instances {
		raw := zapInstance.URI.From(inst)
		d, err := uri.Decompose(raw)
		if err != nil {
			slog.Debug("dropping zap instance", "alert", v.Name, "err", err)
			continue
		}
		if first {
			v.Path = d.Path
			v.Params = d.ParamList()
			v.Query = d.Query
			v.Method = zapInstance.Method.From(inst)
			first = false
		}
		if !seen[d.URI] {
			seen[d.URI] = true
			requests = append(requests, d.URI)
		}
	}
	v.Request = strings.Join(requests, "\n")
	return v
}
