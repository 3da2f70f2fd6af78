package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/user/scanfold/pkg/engine"
	"github.com/user/scanfold/pkg/xmltree"
)

var (
	msfHost = struct {
		ID, Name, Address, OS xmltree.Field
	}{
		ID:      xmltree.Text("id", "").Trimmed(),
		Name:    xmltree.Text("name", ""),
		Address: xmltree.Text("address", "").Trimmed(),
		OS:      xmltree.Text("os-name", ""),
	}

	msfService = struct {
		ID, Port, Proto, State, Name, Info xmltree.Field
	}{
		ID:    xmltree.Text("id", "").Trimmed(),
		Port:  xmltree.Text("port", "").Trimmed(),
		Proto: xmltree.Text("proto", "").Trimmed(),
		State: xmltree.Text("state", "unknown"),
		Name:  xmltree.Text("name", "unknown"),
		Info:  xmltree.Text("info", "unknown"),
	}

	msfVuln = struct {
		ServiceID, Name, Info xmltree.Field
	}{
		ServiceID: xmltree.Text("service-id", "").Trimmed(),
		Name:      xmltree.Text("name", ""),
		Info:      xmltree.Text("info", ""),
	}

	msfNote = struct {
		ServiceID, Type, Data xmltree.Field
	}{
		ServiceID: xmltree.Text("service-id", "").Trimmed(),
		Type:      xmltree.Text("ntype", ""),
		Data:      xmltree.Text("data", ""),
	}

	msfCred = struct {
		Port, User, Pass, Type, Source xmltree.Field
	}{
		Port:   xmltree.Text("port", "").Trimmed(),
		User:   xmltree.Text("user", ""),
		Pass:   xmltree.Text("pass", ""),
		Type:   xmltree.Text("ptype", ""),
		Source: xmltree.Text("sname", ""),
	}

	msfWebSite = struct {
		ID, ServiceID xmltree.Field
	}{
		ID:        xmltree.Text("id", "").Trimmed(),
		ServiceID: xmltree.Text("service-id", "").Trimmed(),
	}

	msfWebVuln = struct {
		SiteID, Name, Description, VHost, Host, Path, Method, Params, ParamName, Risk, Query, Request, Category xmltree.Field
	}{
		SiteID:      xmltree.Text("web-site-id", "").Trimmed(),
		Name:        xmltree.Text("name", ""),
		Description: xmltree.Text("description", ""),
		VHost:       xmltree.Text("vhost", ""),
		Host:        xmltree.Text("host", ""),
		Path:        xmltree.Text("path", ""),
		Method:      xmltree.Text("method", ""),
		Params:      xmltree.Text("params", ""),
		ParamName:   xmltree.Text("pname", ""),
		Risk:        xmltree.Text("risk", "").Trimmed(),
		Query:       xmltree.Text("query", ""),
		Request:     xmltree.Text("request", ""),
		Category:    xmltree.Text("category-id", ""),
	}
)

const weakCredentialsFormat = "[metasploit found the following credentials]\nuser:%s\npass:%s"

// Metasploit reads database exports of the Metasploit framework.
type Metasploit struct {
	q xmltree.Querier
}

func NewMetasploit(q xmltree.Querier) *Metasploit {
	return &Metasploit{q: q}
}

func (m *Metasploit) ID() string { return "metasploit" }

func (m *Metasploit) Name() string { return "Metasploit XML Output Plugin" }

func (m *Metasploit) Description() string {
	return "Hosts, services, notes, credentials and web vulnerabilities from a Metasploit workspace export."
}

func (m *Metasploit) Identifiers() []string {
	return []string{"MetasploitV4", "MetasploitV5"}
}

// noteKey groups notes of one host. The host scope and a service with an
// empty id never collide.
type noteKey struct {
	host  string
	scope engine.Scope
}

func (m *Metasploit) Parse(_ context.Context, data []byte) []engine.HostReport {
	root := parseDocument(m.ID(), data, m.q)
	if root == nil {
		return nil
	}

	serviceBySite := make(map[string]string)
	for _, site := range root.FindAll("web_sites/web_site") {
		serviceBySite[msfWebSite.ID.From(site)] = msfWebSite.ServiceID.From(site)
	}

	webByService := make(map[string][]engine.ServiceFinding)
	for _, n := range root.FindAll("web_vulns/web_vuln") {
		siteID := msfWebVuln.SiteID.From(n)
		serviceID, ok := serviceBySite[siteID]
		if !ok {
			slog.Debug("web vuln references unknown site", "site", siteID, "name", msfWebVuln.Name.From(n))
			continue
		}
		webByService[serviceID] = append(webByService[serviceID], msfWebFinding(n))
	}

	var reports []engine.HostReport
	for _, h := range root.FindAll("hosts/host") {
		reports = append(reports, m.host(h, webByService))
	}
	return reports
}

func (m *Metasploit) host(n *xmltree.Node, webByService map[string][]engine.ServiceFinding) engine.HostReport {
	hostID := msfHost.ID.From(n)
	ip := msfHost.Address.From(n)

	r := engine.HostReport{
		Host:      engine.Host{IP: ip, OS: msfHost.OS.From(n)},
		Interface: &engine.Interface{Name: ip},
	}
	if name := msfHost.Name.From(n); name != "" {
		r.Host.Hostnames = []string{name}
		r.Interface.HostnameResolution = []string{name}
	}
	if isIPv4(ip) {
		r.Interface.IPv4 = ip
	} else {
		r.Interface.IPv6 = ip
	}

	byID := make(map[string]int)
	for _, s := range n.FindAll("services/service") {
		id := msfService.ID.From(s)
		if _, dup := byID[id]; dup {
			slog.Debug("duplicate service id", "host", hostID, "service", id)
			continue
		}
		byID[id] = len(r.Services)
		r.Services = append(r.Services, engine.ServiceReport{
			Service: engine.Service{
				Name:        msfService.Name.From(s),
				Protocol:    msfService.Proto.From(s),
				Ports:       []string{msfService.Port.From(s)},
				Status:      msfService.State.From(s),
				Description: msfService.Info.From(s),
			},
			NoteWebFindings: true,
			Findings:        append([]engine.ServiceFinding(nil), webByService[id]...),
		})
	}

	for _, v := range n.FindAll("vulns/vuln") {
		scope := engine.HostScope()
		if sid := msfVuln.ServiceID.From(v); sid != "" {
			scope = engine.ServiceScope(sid)
		}
		vuln := engine.Vuln{
			Name:        msfVuln.Name.From(v),
			Description: msfVuln.Info.From(v),
			Refs:        xmltree.Texts(v, "refs/ref"),
			Severity:    engine.SeverityInfo,
		}
		if !scope.IsHost() {
			sid, _ := scope.ServiceID()
			if i, found := byID[sid]; found {
				r.Services[i].Findings = append(r.Services[i].Findings, vuln)
				continue
			}
			slog.Debug("vuln references unknown service, keeping it on the host", "host", hostID, "scope", scope.String())
		}
		r.Vulns = append(r.Vulns, vuln)
	}

	notes := make(map[noteKey][]engine.Note)
	for _, nn := range n.FindAll("notes/note") {
		key := noteKey{host: hostID, scope: engine.HostScope()}
		if sid := msfNote.ServiceID.From(nn); sid != "" {
			key.scope = engine.ServiceScope(sid)
		}
		notes[key] = append(notes[key], engine.Note{Type: msfNote.Type.From(nn), Data: msfNote.Data.From(nn)})
	}
	r.Notes = notes[noteKey{host: hostID, scope: engine.HostScope()}]

	creds := make(map[string][]engine.Credential)
	for _, c := range n.FindAll("creds/cred") {
		user, pass := msfCred.User.From(c), msfCred.Pass.From(c)
		port := msfCred.Port.From(c)
		creds[port] = append(creds[port], engine.Credential{
			Username: user,
			Password: pass,
			Type:     msfCred.Type.From(c),
			Source:   msfCred.Source.From(c),
			Finding: &engine.Vuln{
				Name:        "Weak Credentials",
				Description: fmt.Sprintf(weakCredentialsFormat, user, pass),
				Severity:    engine.SeverityHigh,
			},
		})
	}

	for id, i := range byID {
		s := &r.Services[i]
		s.Notes = notes[noteKey{host: hostID, scope: engine.ServiceScope(id)}]
		s.Credentials = creds[s.Service.Ports[0]]
	}
	return r
}

func msfWebFinding(n *xmltree.Node) engine.WebVuln {
	website := msfWebVuln.VHost.From(n)
	if website == "" {
		website = msfWebVuln.Host.From(n)
	}
	return engine.WebVuln{
		Vuln: engine.Vuln{
			Name:        msfWebVuln.Name.From(n),
			Description: msfWebVuln.Description.From(n),
			Severity:    engine.MetasploitScale.Normalize(msfWebVuln.Risk.From(n)),
		},
		Website:   website,
		Path:      msfWebVuln.Path.From(n),
		Method:    msfWebVuln.Method.From(n),
		Params:    msfWebVuln.Params.From(n),
		ParamName: msfWebVuln.ParamName.From(n),
		Query:     msfWebVuln.Query.From(n),
		Request:   msfWebVuln.Request.From(n),
		Category:  msfWebVuln.Category.From(n),
	}
}

func isIPv4(addr string) bool {
	if ip := net.ParseIP(addr); ip != nil {
		return ip.To4() != nil
	}
	return len(strings.Split(addr, ".")) == 4
}
