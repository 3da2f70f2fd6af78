package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Call is one recorded sink invocation.
type Call struct {
	Method    string `json:"method" yaml:"method"`
	ID        ID     `json:"id" yaml:"id"`
	HostID    ID     `json:"host_id,omitempty" yaml:"host_id,omitempty"`
	ServiceID ID     `json:"service_id,omitempty" yaml:"service_id,omitempty"`
	ParentID  ID     `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Payload   any    `json:"payload" yaml:"payload"`
}

// Recorder is a Sink that keeps every call in order and hands out
// predictable ids such as host-1 or note-3.
type Recorder struct {
	mu       sync.Mutex
	Calls    []Call
	counters map[string]int
}

func NewRecorder() *Recorder {
	return &Recorder{counters: make(map[string]int)}
}

func (r *Recorder) record(kind string, c Call) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters == nil {
		r.counters = make(map[string]int)
	}
	r.counters[kind]++
	c.ID = ID(fmt.Sprintf("%s-%d", kind, r.counters[kind]))
	r.Calls = append(r.Calls, c)
	return c.ID, nil
}

// Methods lists the recorded method names in call order.
func (r *Recorder) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Method
	}
	return out
}

// Dump writes the calls as JSON, one object per line.
func (r *Recorder) Dump(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	enc := json.NewEncoder(w)
	for _, c := range r.Calls {
		if err := enc.Encode(c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) CreateHost(_ context.Context, h Host) (ID, error) {
	return r.record("host", Call{Method: "CreateHost", Payload: h})
}

func (r *Recorder) CreateInterface(_ context.Context, hostID ID, iface Interface) (ID, error) {
	return r.record("iface", Call{Method: "CreateInterface", HostID: hostID, Payload: iface})
}

func (r *Recorder) CreateServiceOnInterface(_ context.Context, hostID, interfaceID ID, s Service) (ID, error) {
	return r.record("svc", Call{Method: "CreateServiceOnInterface", HostID: hostID, ParentID: interfaceID, Payload: s})
}

func (r *Recorder) CreateServiceOnHost(_ context.Context, hostID ID, s Service) (ID, error) {
	return r.record("svc", Call{Method: "CreateServiceOnHost", HostID: hostID, Payload: s})
}

func (r *Recorder) CreateVulnOnHost(_ context.Context, hostID ID, v Vuln) (ID, error) {
	return r.record("vuln", Call{Method: "CreateVulnOnHost", HostID: hostID, Payload: v})
}

func (r *Recorder) CreateVulnOnService(_ context.Context, hostID, serviceID ID, v Vuln) (ID, error) {
	return r.record("vuln", Call{Method: "CreateVulnOnService", HostID: hostID, ServiceID: serviceID, Payload: v})
}

func (r *Recorder) CreateWebVulnOnService(_ context.Context, hostID, serviceID ID, v WebVuln) (ID, error) {
	return r.record("vuln", Call{Method: "CreateWebVulnOnService", HostID: hostID, ServiceID: serviceID, Payload: v})
}

func (r *Recorder) CreateNoteOnHost(_ context.Context, hostID ID, n Note) (ID, error) {
	return r.record("note", Call{Method: "CreateNoteOnHost", HostID: hostID, Payload: n})
}

func (r *Recorder) CreateNoteOnService(_ context.Context, hostID, serviceID ID, n Note) (ID, error) {
	return r.record("note", Call{Method: "CreateNoteOnService", HostID: hostID, ServiceID: serviceID, Payload: n})
}

func (r *Recorder) CreateNoteOnNote(_ context.Context, hostID, serviceID, parentID ID, n Note) (ID, error) {
	return r.record("note", Call{Method: "CreateNoteOnNote", HostID: hostID, ServiceID: serviceID, ParentID: parentID, Payload: n})
}

func (r *Recorder) CreateCredentialOnService(_ context.Context, hostID, serviceID ID, c Credential) (ID, error) {
	return r.record("cred", Call{Method: "CreateCredentialOnService", HostID: hostID, ServiceID: serviceID, Payload: c})
}
