package engine

// Vuln is a normalized finding. Whether it belongs to a host or to a service
// is decided by where it sits in a HostReport.
type Vuln struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Refs        []string `json:"refs" yaml:"refs"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Resolution  string   `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	ExternalID  string   `json:"external_id,omitempty" yaml:"external_id,omitempty"`
}

// WebVuln is a finding observed through an HTTP transaction.
type WebVuln struct {
	Vuln      `yaml:",inline"`
	Website   string `json:"website" yaml:"website"`
	Path      string `json:"path" yaml:"path"`
	Method    string `json:"method,omitempty" yaml:"method,omitempty"`
	Params    string `json:"params,omitempty" yaml:"params,omitempty"`
	ParamName string `json:"pname,omitempty" yaml:"pname,omitempty"`
	Query     string `json:"query,omitempty" yaml:"query,omitempty"`
	Request   string `json:"request,omitempty" yaml:"request,omitempty"`
	Category  string `json:"category,omitempty" yaml:"category,omitempty"`
}

// ServiceFinding is either a Vuln or a WebVuln attached to a service.
type ServiceFinding interface {
	serviceFinding()
}

func (Vuln) serviceFinding()    {}
func (WebVuln) serviceFinding() {}
