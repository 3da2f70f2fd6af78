package engine

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type snapshot struct {
	Hosts []*HostNode `json:"hosts" yaml:"hosts"`
}

func (g *UnifiedGraph) snapshot() snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return snapshot{Hosts: g.Hosts}
}

// WriteJSON encodes the whole graph.
func (g *UnifiedGraph) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(g.snapshot()), "could not encode graph")
}

// WriteYAML encodes the whole graph.
func (g *UnifiedGraph) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(g.snapshot()); err != nil {
		return errors.Wrap(err, "could not encode graph")
	}
	return enc.Close()
}

// SaveSnapshot stores the graph as JSON at path.
func (g *UnifiedGraph) SaveSnapshot(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create snapshot")
	}
	defer f.Close()
	return g.WriteJSON(f)
}

// LoadSnapshot replaces the graph content with a snapshot written by
// SaveSnapshot. New entities keep getting fresh ids afterwards.
func (g *UnifiedGraph) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "could not read snapshot")
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.Wrap(err, "could not decode snapshot")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.Hosts = snap.Hosts
	if g.Hosts == nil {
		g.Hosts = make([]*HostNode, 0)
	}
	g.reindex()
	g.seq = uint64(len(g.hosts) + len(g.interfaces) + len(g.services) + len(g.notes))
	for _, h := range g.Hosts {
		g.seq += uint64(len(h.Vulns))
		for _, s := range h.Services {
			g.seq += uint64(len(s.Vulns) + len(s.Credentials))
		}
	}
	return nil
}
