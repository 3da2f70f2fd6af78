package plugins

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/user/scanfold/pkg/engine"
	"github.com/user/scanfold/pkg/xmltree"
)

const (
	qualysAssetDoctype = "<!DOCTYPE ASSET_DATA_REPORT SYSTEM"
	qualysScanDoctype  = "<!DOCTYPE SCAN SYSTEM"

	qualysNoHostname = "No registered hostname"
)

var qualysMarkup = strings.NewReplacer(
	"<P>", "",
	"<UL>", "",
	"<LI>", "",
	"<BR>", "",
	`<A HREF="`, "",
	"</A>", " ",
	`" TARGET="_blank">`, " ",
	"&quot;", `"`,
)

func cleanQualys(s string) string {
	return qualysMarkup.Replace(s)
}

var (
	qualysAssetHost = struct {
		IP, DNS, OS xmltree.Field
	}{
		IP:  xmltree.Text("IP", "").Trimmed(),
		DNS: xmltree.Text("DNS", ""),
		OS:  xmltree.Text("OPERATING_SYSTEM", ""),
	}

	qualysAssetVuln = struct {
		QID, Port, Protocol, Result xmltree.Field
	}{
		QID:      xmltree.Text("QID", "").Trimmed(),
		Port:     xmltree.Text("PORT", "").Trimmed(),
		Protocol: xmltree.Text("PROTOCOL", "").Trimmed(),
		Result:   xmltree.Text("RESULT", ""),
	}

	qualysGlossary = struct {
		Title, Severity, CVSS, PCI, Solution, Impact, Threat, CVE, Category xmltree.Field
	}{
		Title:    xmltree.Text("TITLE", ""),
		Severity: xmltree.Text("SEVERITY", "").Trimmed(),
		CVSS:     xmltree.Text("CVSS_SCORE/CVSS_BASE", ""),
		PCI:      xmltree.Text("PCI_FLAG", ""),
		Solution: xmltree.Text("SOLUTION", ""),
		Impact:   xmltree.Text("IMPACT", ""),
		Threat:   xmltree.Text("THREAT", ""),
		CVE:      xmltree.Text("CVE_ID_LIST/CVE_ID/ID", ""),
		Category: xmltree.Text("CATEGORY", ""),
	}

	qualysScanHost = struct {
		IP, Name, OS xmltree.Field
	}{
		IP:   xmltree.Attribute(".", "value", "").Trimmed(),
		Name: xmltree.Attribute(".", "name", ""),
		OS:   xmltree.Text("OS", ""),
	}

	qualysScanCategory = struct {
		Port, Protocol, Severity, Value xmltree.Field
	}{
		Port:     xmltree.Attribute(".", "port", "").Trimmed(),
		Protocol: xmltree.Attribute(".", "protocol", "").Trimmed(),
		Severity: xmltree.Attribute(".", "severity", "").Trimmed(),
		Value:    xmltree.Attribute(".", "value", ""),
	}

	qualysScanItem = struct {
		Number, Severity, Title, CVSS, Diagnosis, Solution, Result, Consequence xmltree.Field
	}{
		Number:      xmltree.Attribute(".", "number", "").Trimmed(),
		Severity:    xmltree.Attribute(".", "severity", "").Trimmed(),
		Title:       xmltree.Text("TITLE", ""),
		CVSS:        xmltree.Text("CVSS_BASE", ""),
		Diagnosis:   xmltree.Text("DIAGNOSIS", ""),
		Solution:    xmltree.Text("SOLUTION", ""),
		Result:      xmltree.Text("RESULT", ""),
		Consequence: xmltree.Text("CONSEQUENCE", ""),
	}
)

// category containers of the scan dialect and the item tag each one holds
var qualysScanSections = []struct{ container, item string }{
	{"VULNS/CAT", "VULN"},
	{"INFOS/CAT", "INFO"},
	{"SERVICES/CAT", "SERVICE"},
	{"PRACTICES/CAT", "PRACTICE"},
}

// Qualys reads QualysGuard asset data reports and scan reports.
type Qualys struct {
	q xmltree.Querier
}

func NewQualys(q xmltree.Querier) *Qualys {
	return &Qualys{q: q}
}

func (p *Qualys) ID() string { return "qualysguard" }

func (p *Qualys) Name() string { return "Qualysguard XML Output Plugin" }

func (p *Qualys) Description() string {
	return "Vulnerabilities from QualysGuard asset data reports and scan reports."
}

func (p *Qualys) Identifiers() []string {
	return []string{"ASSET_DATA_REPORT", "SCAN"}
}

func (p *Qualys) Parse(_ context.Context, data []byte) []engine.HostReport {
	var asset bool
	switch {
	case bytes.Contains(data, []byte(qualysAssetDoctype)):
		asset = true
	case bytes.Contains(data, []byte(qualysScanDoctype)):
	default:
		slog.Debug("qualys report without a known doctype")
		return nil
	}

	root := parseDocument(p.ID(), data, p.q, xmltree.WithASCII())
	if root == nil {
		return nil
	}
	if asset {
		return p.assetReport(root)
	}
	return p.scanReport(root)
}

// qualysFinding is one detection before it is placed on a host or service.
type qualysFinding struct {
	port, protocol, category string
	vuln                     engine.Vuln
}

func (p *Qualys) assetReport(root *xmltree.Node) []engine.HostReport {
	glossary := make(map[string]*xmltree.Node)
	for _, d := range root.FindAll("GLOSSARY/VULN_DETAILS_LIST/VULN_DETAILS") {
		id, _ := d.Attr("id")
		glossary[strings.TrimPrefix(strings.TrimSpace(id), "qid_")] = d
	}

	var reports []engine.HostReport
	for _, h := range root.FindAll("HOST_LIST/HOST") {
		ip := qualysAssetHost.IP.From(h)
		b := newQualysHost(ip, qualysAssetHost.OS.From(h), qualysAssetHost.DNS.From(h))

		for _, v := range h.FindAll("VULN_INFO_LIST/VULN_INFO") {
			qid := qualysAssetVuln.QID.From(v)
			entry, ok := glossary[qid]
			if !ok {
				slog.Debug("qualys finding without glossary entry", "qid", qid)
			}
			// a nil entry resolves every glossary field to its default
			b.add(assetFinding(v, entry, qid))
		}
		reports = append(reports, b.report)
	}
	return reports
}

func assetFinding(v, entry *xmltree.Node, qid string) qualysFinding {
	result := qualysAssetVuln.Result.From(v)
	impact := qualysGlossary.Impact.From(entry)
	solution := qualysGlossary.Solution.From(entry)

	desc := cleanQualys(qualysGlossary.Threat.From(entry))
	if result != "" {
		desc += "\n\nResult: " + cleanQualys(result)
	}
	if impact != "" {
		desc += "\n\nImpact: " + cleanQualys(impact)
	}
	if result != "" {
		desc += "\n\nSolution: " + cleanQualys(solution)
	}

	var refs []string
	if cve := qualysGlossary.CVE.From(entry); cve != "" {
		refs = append(refs, cve)
	}
	if cvss := qualysGlossary.CVSS.From(entry); cvss != "" {
		refs = append(refs, "CVSS SCORE: "+cvss)
	}
	if pci := qualysGlossary.PCI.From(entry); pci != "" {
		refs = append(refs, "PCI: "+pci)
	}

	return qualysFinding{
		port:     qualysAssetVuln.Port.From(v),
		protocol: qualysAssetVuln.Protocol.From(v),
		category: qualysGlossary.Category.From(entry),
		vuln: engine.Vuln{
			Name:        firstNonEmpty(qualysGlossary.Title.From(entry), qid),
			Description: desc,
			Refs:        refs,
			Severity:    engine.QualysScale.Normalize(qualysGlossary.Severity.From(entry)),
			Resolution:  solution,
			ExternalID:  qid,
		},
	}
}

func (p *Qualys) scanReport(root *xmltree.Node) []engine.HostReport {
	var reports []engine.HostReport
	for _, h := range root.FindAll("IP") {
		name := qualysScanHost.Name.From(h)
		if name == qualysNoHostname {
			name = ""
		}
		b := newQualysHost(qualysScanHost.IP.From(h), qualysScanHost.OS.From(h), name)

		for _, section := range qualysScanSections {
			for _, cat := range h.FindAll(section.container) {
				for _, item := range cat.FindAll(section.item) {
					b.add(scanFinding(cat, item))
				}
			}
		}
		reports = append(reports, b.report)
	}
	return reports
}

func scanFinding(cat, item *xmltree.Node) qualysFinding {
	number := qualysScanItem.Number.From(item)
	severity := firstNonEmpty(qualysScanCategory.Severity.From(cat), qualysScanItem.Severity.From(item))

	desc := cleanQualys(qualysScanItem.Diagnosis.From(item))
	if result := qualysScanItem.Result.From(item); result != "" {
		desc += "\nResult: " + cleanQualys(result)
	}
	if consequence := qualysScanItem.Consequence.From(item); consequence != "" {
		desc += "\nConsequence: " + cleanQualys(consequence)
	}

	refs := xmltree.Texts(item, "CVE_ID_LIST/CVE_ID/ID")
	for _, bid := range xmltree.Texts(item, "BUGTRAQ_ID_LIST/BUGTRAQ_ID/ID") {
		refs = append(refs, "bid-"+bid)
	}
	if cvss := qualysScanItem.CVSS.From(item); cvss != "" {
		refs = append(refs, "CVSS BASE: "+cvss)
	}

	solution := cleanQualys(qualysScanItem.Solution.From(item))
	return qualysFinding{
		port:     qualysScanCategory.Port.From(cat),
		protocol: qualysScanCategory.Protocol.From(cat),
		category: qualysScanCategory.Value.From(cat),
		vuln: engine.Vuln{
			Name:        firstNonEmpty(cleanQualys(qualysScanItem.Title.From(item)), number),
			Description: desc,
			Refs:        refs,
			Severity:    engine.QualysScale.Normalize(severity),
			Resolution:  solution,
			ExternalID:  number,
		},
	}
}

type qualysServiceKey struct {
	port, protocol string
}

// qualysHost places findings on a host, creating one service per port and
// protocol on first use.
type qualysHost struct {
	report   engine.HostReport
	services map[qualysServiceKey]int
}

func newQualysHost(ip, os, hostname string) *qualysHost {
	h := &qualysHost{
		report:   engine.HostReport{Host: engine.Host{IP: ip, OS: os}},
		services: make(map[qualysServiceKey]int),
	}
	if hostname != "" {
		h.report.Host.Hostnames = []string{hostname}
	}
	return h
}

func (h *qualysHost) add(f qualysFinding) {
	if f.port == "" {
		h.report.Vulns = append(h.report.Vulns, f.vuln)
		return
	}

	key := qualysServiceKey{port: f.port, protocol: f.protocol}
	i, ok := h.services[key]
	if !ok {
		i = len(h.report.Services)
		h.services[key] = i
		h.report.Services = append(h.report.Services, engine.ServiceReport{
			Service: engine.Service{
				Name:     f.port,
				Protocol: f.protocol,
				Ports:    []string{f.port},
				Status:   "open",
			},
		})
	}

	s := &h.report.Services[i]
	if isQualysWeb(f) {
		s.Findings = append(s.Findings, engine.WebVuln{Vuln: f.vuln, Website: h.report.Host.IP})
		return
	}
	s.Findings = append(s.Findings, f.vuln)
}

// isQualysWeb classifies on port first, then on ssl or http in the finding
// name or category.
func isQualysWeb(f qualysFinding) bool {
	if f.port == "80" || f.port == "443" {
		return true
	}
	text := strings.ToLower(f.vuln.Name + " " + f.category)
	return strings.Contains(text, "ssl") || strings.Contains(text, "http")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
