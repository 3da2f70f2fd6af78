package engine

// ID identifies an entity created by a Sink. The engine never looks inside.
type ID string

type Host struct {
	IP        string   `json:"ip" yaml:"ip"`
	OS        string   `json:"os,omitempty" yaml:"os,omitempty"`
	Hostnames []string `json:"hostnames,omitempty" yaml:"hostnames,omitempty"`
}

type Interface struct {
	Name               string   `json:"name" yaml:"name"`
	IPv4               string   `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	IPv6               string   `json:"ipv6,omitempty" yaml:"ipv6,omitempty"`
	HostnameResolution []string `json:"hostname_resolution,omitempty" yaml:"hostname_resolution,omitempty"`
}

type Service struct {
	Name        string   `json:"name" yaml:"name"`
	Protocol    string   `json:"protocol" yaml:"protocol"`
	Ports       []string `json:"ports" yaml:"ports"`
	Status      string   `json:"status" yaml:"status"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

type Note struct {
	Type string `json:"type" yaml:"type"`
	Data string `json:"data" yaml:"data"`
}

// Credential was recovered for a service. Finding, when set, is reported on
// the same service right after the credential.
type Credential struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Finding  *Vuln  `json:"-" yaml:"-"`
}

// Scope tells whether a record belongs to its host or to one of its services.
// A service scope with an empty id is still a service scope.
type Scope struct {
	service   bool
	serviceID string
}

func HostScope() Scope {
	return Scope{}
}

func ServiceScope(id string) Scope {
	return Scope{service: true, serviceID: id}
}

func (s Scope) IsHost() bool {
	return !s.service
}

// ServiceID returns the service id and true for service scopes.
func (s Scope) ServiceID() (string, bool) {
	return s.serviceID, s.service
}

func (s Scope) String() string {
	if !s.service {
		return "host"
	}
	return "service:" + s.serviceID
}

// HostReport is everything an extractor resolved for one scanned machine.
type HostReport struct {
	Host      Host
	Interface *Interface
	Notes     []Note
	Vulns     []Vuln
	Services  []ServiceReport
}

// ServiceReport groups the records attached to one service.
//
// Websites are announced under a single "website" note before any finding.
// With NoteWebFindings every web finding also adds a child note carrying its
// virtual host.
type ServiceReport struct {
	Service         Service
	Notes           []Note
	Websites        []string
	NoteWebFindings bool
	Credentials     []Credential
	Findings        []ServiceFinding
}
