package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrUnknownID is returned when a call references an entity the graph never
// handed out.
var ErrUnknownID = errors.New("unknown id")

var graphNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/user/scanfold/graph"))

type HostNode struct {
	ID         ID               `json:"id" yaml:"id"`
	Host       Host             `json:"host" yaml:"host"`
	Interfaces []*InterfaceNode `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Services   []*ServiceNode   `json:"services,omitempty" yaml:"services,omitempty"`
	Notes      []*NoteNode      `json:"notes,omitempty" yaml:"notes,omitempty"`
	Vulns      []*VulnNode      `json:"vulns,omitempty" yaml:"vulns,omitempty"`
}

type InterfaceNode struct {
	ID        ID        `json:"id" yaml:"id"`
	Interface Interface `json:"interface" yaml:"interface"`
}

type ServiceNode struct {
	ID          ID                `json:"id" yaml:"id"`
	InterfaceID ID                `json:"interface_id,omitempty" yaml:"interface_id,omitempty"`
	Service     Service           `json:"service" yaml:"service"`
	Notes       []*NoteNode       `json:"notes,omitempty" yaml:"notes,omitempty"`
	Vulns       []*VulnNode       `json:"vulns,omitempty" yaml:"vulns,omitempty"`
	Credentials []*CredentialNode `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

type NoteNode struct {
	ID       ID          `json:"id" yaml:"id"`
	Note     Note        `json:"note" yaml:"note"`
	Children []*NoteNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// VulnNode stores plain and web findings alike; Web tells them apart.
type VulnNode struct {
	ID      ID      `json:"id" yaml:"id"`
	Web     bool    `json:"web" yaml:"web"`
	Finding WebVuln `json:"finding" yaml:"finding"`
}

type CredentialNode struct {
	ID         ID         `json:"id" yaml:"id"`
	Credential Credential `json:"credential" yaml:"credential"`
}

// UnifiedGraph is an in-memory Sink. It keeps every entity it is handed,
// nested under its owner, and assigns name based UUIDs so the same sequence of
// calls always yields the same ids.
type UnifiedGraph struct {
	Hosts []*HostNode `json:"hosts" yaml:"hosts"`

	mu         sync.RWMutex
	seq        uint64
	hosts      map[ID]*HostNode
	interfaces map[ID]*InterfaceNode
	services   map[ID]*ServiceNode
	notes      map[ID]*NoteNode
	// owner maps interfaces and services to their host, and notes to the
	// service (or host) they hang under.
	owner map[ID]ID
}

// NewUnifiedGraph creates a new graph instance
func NewUnifiedGraph() *UnifiedGraph {
	g := &UnifiedGraph{Hosts: make([]*HostNode, 0)}
	g.reindex()
	return g
}

func (g *UnifiedGraph) nextID(kind string) ID {
	g.seq++
	return ID(uuid.NewSHA1(graphNamespace, []byte(fmt.Sprintf("%s/%d", kind, g.seq))).String())
}

// reindex rebuilds the lookup maps from Hosts. Callers hold the write lock.
func (g *UnifiedGraph) reindex() {
	g.hosts = make(map[ID]*HostNode)
	g.interfaces = make(map[ID]*InterfaceNode)
	g.services = make(map[ID]*ServiceNode)
	g.notes = make(map[ID]*NoteNode)
	g.owner = make(map[ID]ID)

	var walkNotes func(ID, []*NoteNode)
	walkNotes = func(owner ID, ns []*NoteNode) {
		for _, n := range ns {
			g.notes[n.ID] = n
			g.owner[n.ID] = owner
			walkNotes(owner, n.Children)
		}
	}
	for _, h := range g.Hosts {
		g.hosts[h.ID] = h
		for _, i := range h.Interfaces {
			g.interfaces[i.ID] = i
			g.owner[i.ID] = h.ID
		}
		for _, s := range h.Services {
			g.services[s.ID] = s
			g.owner[s.ID] = h.ID
			walkNotes(s.ID, s.Notes)
		}
		walkNotes(h.ID, h.Notes)
	}
}

func (g *UnifiedGraph) host(id ID) (*HostNode, error) {
	h, ok := g.hosts[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownID, "host %s", id)
	}
	return h, nil
}

func (g *UnifiedGraph) service(hostID, serviceID ID) (*ServiceNode, error) {
	if _, err := g.host(hostID); err != nil {
		return nil, err
	}
	s, ok := g.services[serviceID]
	if !ok || g.owner[serviceID] != hostID {
		return nil, errors.Wrapf(ErrUnknownID, "service %s on host %s", serviceID, hostID)
	}
	return s, nil
}

func (g *UnifiedGraph) CreateHost(_ context.Context, h Host) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	node := &HostNode{ID: g.nextID("host"), Host: h}
	g.Hosts = append(g.Hosts, node)
	g.hosts[node.ID] = node
	return node.ID, nil
}

func (g *UnifiedGraph) CreateInterface(_ context.Context, hostID ID, iface Interface) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, err := g.host(hostID)
	if err != nil {
		return "", err
	}
	node := &InterfaceNode{ID: g.nextID("interface"), Interface: iface}
	h.Interfaces = append(h.Interfaces, node)
	g.interfaces[node.ID] = node
	g.owner[node.ID] = hostID
	return node.ID, nil
}

func (g *UnifiedGraph) addService(hostID, interfaceID ID, s Service) (ID, error) {
	h, err := g.host(hostID)
	if err != nil {
		return "", err
	}
	if interfaceID != "" {
		if _, ok := g.interfaces[interfaceID]; !ok || g.owner[interfaceID] != hostID {
			return "", errors.Wrapf(ErrUnknownID, "interface %s on host %s", interfaceID, hostID)
		}
	}
	node := &ServiceNode{ID: g.nextID("service"), InterfaceID: interfaceID, Service: s}
	h.Services = append(h.Services, node)
	g.services[node.ID] = node
	g.owner[node.ID] = hostID
	return node.ID, nil
}

func (g *UnifiedGraph) CreateServiceOnInterface(_ context.Context, hostID, interfaceID ID, s Service) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if interfaceID == "" {
		return "", errors.Wrap(ErrUnknownID, "empty interface id")
	}
	return g.addService(hostID, interfaceID, s)
}

func (g *UnifiedGraph) CreateServiceOnHost(_ context.Context, hostID ID, s Service) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addService(hostID, "", s)
}

func (g *UnifiedGraph) CreateVulnOnHost(_ context.Context, hostID ID, v Vuln) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, err := g.host(hostID)
	if err != nil {
		return "", err
	}
	node := &VulnNode{ID: g.nextID("vuln"), Finding: WebVuln{Vuln: v}}
	h.Vulns = append(h.Vulns, node)
	return node.ID, nil
}

func (g *UnifiedGraph) CreateVulnOnService(_ context.Context, hostID, serviceID ID, v Vuln) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, err := g.service(hostID, serviceID)
	if err != nil {
		return "", err
	}
	node := &VulnNode{ID: g.nextID("vuln"), Finding: WebVuln{Vuln: v}}
	s.Vulns = append(s.Vulns, node)
	return node.ID, nil
}

func (g *UnifiedGraph) CreateWebVulnOnService(_ context.Context, hostID, serviceID ID, v WebVuln) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, err := g.service(hostID, serviceID)
	if err != nil {
		return "", err
	}
	node := &VulnNode{ID: g.nextID("vuln"), Web: true, Finding: v}
	s.Vulns = append(s.Vulns, node)
	return node.ID, nil
}

func (g *UnifiedGraph) CreateNoteOnHost(_ context.Context, hostID ID, n Note) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, err := g.host(hostID)
	if err != nil {
		return "", err
	}
	node := &NoteNode{ID: g.nextID("note"), Note: n}
	h.Notes = append(h.Notes, node)
	g.notes[node.ID] = node
	g.owner[node.ID] = hostID
	return node.ID, nil
}

func (g *UnifiedGraph) CreateNoteOnService(_ context.Context, hostID, serviceID ID, n Note) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, err := g.service(hostID, serviceID)
	if err != nil {
		return "", err
	}
	node := &NoteNode{ID: g.nextID("note"), Note: n}
	s.Notes = append(s.Notes, node)
	g.notes[node.ID] = node
	g.owner[node.ID] = serviceID
	return node.ID, nil
}

// CreateNoteOnNote only accepts a parent note of the same service.
func (g *UnifiedGraph) CreateNoteOnNote(_ context.Context, hostID, serviceID, parentID ID, n Note) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.service(hostID, serviceID); err != nil {
		return "", err
	}
	parent, ok := g.notes[parentID]
	if !ok || g.owner[parentID] != serviceID {
		return "", errors.Wrapf(ErrUnknownID, "note %s on service %s", parentID, serviceID)
	}
	node := &NoteNode{ID: g.nextID("note"), Note: n}
	parent.Children = append(parent.Children, node)
	g.notes[node.ID] = node
	g.owner[node.ID] = serviceID
	return node.ID, nil
}

func (g *UnifiedGraph) CreateCredentialOnService(_ context.Context, hostID, serviceID ID, c Credential) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, err := g.service(hostID, serviceID)
	if err != nil {
		return "", err
	}
	c.Finding = nil
	node := &CredentialNode{ID: g.nextID("credential"), Credential: c}
	s.Credentials = append(s.Credentials, node)
	return node.ID, nil
}

// Stats counts what the graph holds.
type Stats struct {
	Hosts       int
	Services    int
	Vulns       int
	WebVulns    int
	Notes       int
	Credentials int
	BySeverity  map[Severity]int
}

func (g *UnifiedGraph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st := Stats{Hosts: len(g.Hosts), Notes: len(g.notes), BySeverity: make(map[Severity]int)}
	count := func(vs []*VulnNode) {
		for _, v := range vs {
			if v.Web {
				st.WebVulns++
			} else {
				st.Vulns++
			}
			st.BySeverity[v.Finding.Severity]++
		}
	}
	for _, h := range g.Hosts {
		count(h.Vulns)
		st.Services += len(h.Services)
		for _, s := range h.Services {
			count(s.Vulns)
			st.Credentials += len(s.Credentials)
		}
	}
	return st
}

// GetReport returns a text summary of the graph
func (g *UnifiedGraph) GetReport() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Unified Graph (%d hosts):\n", len(g.Hosts)))
	sb.WriteString("--------------------------------------------------\n")

	writeVuln := func(indent string, v *VulnNode) {
		kind := "vuln"
		if v.Web {
			kind = "web"
		}
		sb.WriteString(fmt.Sprintf("%s[%s] %s (%s)\n", indent, v.Finding.Severity, v.Finding.Name, kind))
		if v.Web && v.Finding.Path != "" {
			sb.WriteString(fmt.Sprintf("%s  Path: %s %s\n", indent, v.Finding.Method, v.Finding.Path))
		}
		if len(v.Finding.Refs) > 0 {
			sb.WriteString(fmt.Sprintf("%s  Refs: %s\n", indent, strings.Join(v.Finding.Refs, ", ")))
		}
	}

	for _, h := range g.Hosts {
		sb.WriteString(fmt.Sprintf("Host %s", h.Host.IP))
		if h.Host.OS != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", h.Host.OS))
		}
		if len(h.Host.Hostnames) > 0 {
			sb.WriteString(fmt.Sprintf(" [%s]", strings.Join(h.Host.Hostnames, ", ")))
		}
		sb.WriteString("\n")
		for _, v := range h.Vulns {
			writeVuln("  ", v)
		}
		for _, s := range h.Services {
			sb.WriteString(fmt.Sprintf("  Service %s %s/%s %s\n", s.Service.Name, strings.Join(s.Service.Ports, ","), s.Service.Protocol, s.Service.Status))
			for _, c := range s.Credentials {
				sb.WriteString(fmt.Sprintf("    Credential: %s\n", c.Credential.Username))
			}
			for _, v := range s.Vulns {
				writeVuln("    ", v)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
