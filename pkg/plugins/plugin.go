// Package plugins turns scanner report files into engine host reports.
package plugins

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/user/scanfold/pkg/engine"
	"github.com/user/scanfold/pkg/resolve"
	"github.com/user/scanfold/pkg/xmltree"
)

// ErrUnknownFormat is returned when no plugin claims a document.
var ErrUnknownFormat = errors.New("unknown report format")

// Plugin extracts one report dialect. Parse never fails: a document it
// cannot read yields no reports.
type Plugin interface {
	ID() string
	Name() string
	Description() string
	// Identifiers lists the root element names the plugin understands.
	Identifiers() []string
	Parse(ctx context.Context, data []byte) []engine.HostReport
}

// Options are shared by every registered plugin.
type Options struct {
	Querier  xmltree.Querier
	Resolver resolve.Resolver
}

// Registry holds the plugins in registration order.
type Registry struct {
	plugins map[string]Plugin
	order   []string
}

// NewRegistry registers the built in plugins.
func NewRegistry(opts Options) *Registry {
	if opts.Querier == nil {
		opts.Querier = xmltree.ScanQuerier{}
	}
	if opts.Resolver == nil {
		opts.Resolver = resolve.New()
	}

	r := &Registry{plugins: make(map[string]Plugin)}
	r.Register(NewMetasploit(opts.Querier))
	r.Register(NewNdiff(opts.Querier))
	r.Register(NewQualys(opts.Querier))
	r.Register(NewZap(opts.Querier, opts.Resolver))
	return r
}

// Register adds p, replacing any plugin with the same id.
func (r *Registry) Register(p Plugin) {
	id := strings.ToLower(p.ID())
	if _, exists := r.plugins[id]; !exists {
		r.order = append(r.order, id)
	}
	r.plugins[id] = p
}

func (r *Registry) Get(id string) (Plugin, error) {
	p, ok := r.plugins[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFormat, "no plugin named %q", id)
	}
	return p, nil
}

func (r *Registry) List() []Plugin {
	out := make([]Plugin, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plugins[id])
	}
	return out
}

// Detect picks the plugin whose identifiers contain the document's root
// element name.
func (r *Registry) Detect(data []byte) (Plugin, error) {
	root, err := xmltree.RootName(data)
	if err != nil {
		return nil, errors.Wrap(ErrUnknownFormat, err.Error())
	}
	for _, p := range r.List() {
		for _, ident := range p.Identifiers() {
			if ident == root {
				return p, nil
			}
		}
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "root element <%s>", root)
}

// Run parses data with p and emits the result into sink.
func (r *Registry) Run(ctx context.Context, p Plugin, data []byte, sink engine.Sink) error {
	reports := p.Parse(ctx, data)
	slog.Debug("parsed report", "plugin", p.ID(), "hosts", len(reports))
	return engine.Emit(ctx, sink, reports)
}

func parseDocument(plugin string, data []byte, q xmltree.Querier, opts ...xmltree.ParseOption) *xmltree.Node {
	root, err := xmltree.Parse(data, q, opts...)
	if err != nil {
		slog.Warn("could not parse report", "plugin", plugin, "err", err)
		return nil
	}
	return root
}
