package xmltree

import (
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// Querier evaluates relative element paths. The implementation is picked once
// at startup and shared by every parse.
type Querier interface {
	FindAll(n *xmlquery.Node, path string) []*xmlquery.Node
	FindFirst(n *xmlquery.Node, path string) *xmlquery.Node
}

const (
	EngineXPath = "xpath"
	EngineScan  = "scan"
)

// NewQuerier returns the querier registered under name.
func NewQuerier(name string) (Querier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineXPath:
		return NewXPathQuerier(256)
	case EngineScan:
		return ScanQuerier{}, nil
	default:
		return nil, errors.Errorf("unknown query engine %q", name)
	}
}

// XPathQuerier hands paths to the xpath engine. Compiled expressions are kept
// in a bounded cache since extractors reuse a small fixed set of paths.
type XPathQuerier struct {
	exprs *lru.Cache[string, *xpath.Expr]
}

func NewXPathQuerier(size int) (*XPathQuerier, error) {
	cache, err := lru.New[string, *xpath.Expr](size)
	if err != nil {
		return nil, errors.Wrap(err, "could not create expression cache")
	}
	return &XPathQuerier{exprs: cache}, nil
}

func (x *XPathQuerier) compile(path string) *xpath.Expr {
	if expr, ok := x.exprs.Get(path); ok {
		return expr
	}
	expr, err := xpath.Compile(path)
	if err != nil {
		slog.Debug("invalid path expression", "path", path, "err", err)
		return nil
	}
	x.exprs.Add(path, expr)
	return expr
}

func (x *XPathQuerier) FindAll(n *xmlquery.Node, path string) []*xmlquery.Node {
	expr := x.compile(path)
	if expr == nil {
		return nil
	}
	return xmlquery.QuerySelectorAll(n, expr)
}

func (x *XPathQuerier) FindFirst(n *xmlquery.Node, path string) *xmlquery.Node {
	expr := x.compile(path)
	if expr == nil {
		return nil
	}
	return xmlquery.QuerySelector(n, expr)
}

// ScanQuerier walks children by hand. It understands slash separated tag
// steps, "*" and ".", and a single tag[@attr='value'] predicate per step: all
// children named tag are collected first and then filtered on an exact
// attribute match.
type ScanQuerier struct{}

type step struct {
	tag   string
	attr  string
	value string
	pred  bool
}

func parseStep(s string) (step, bool) {
	tag, rest, found := strings.Cut(s, "[")
	if !found {
		return step{tag: s}, s != ""
	}
	rest, ok := strings.CutSuffix(rest, "]")
	if !ok {
		return step{}, false
	}
	rest, ok = strings.CutPrefix(rest, "@")
	if !ok {
		return step{}, false
	}
	attr, value, ok := strings.Cut(rest, "=")
	if !ok || len(value) < 2 {
		return step{}, false
	}
	quote := value[0]
	if (quote != '\'' && quote != '"') || value[len(value)-1] != quote {
		return step{}, false
	}
	return step{tag: tag, attr: strings.TrimSpace(attr), value: value[1 : len(value)-1], pred: true}, tag != ""
}

func (s step) matches(n *xmlquery.Node) bool {
	if n.Type != xmlquery.ElementNode {
		return false
	}
	if s.tag != "*" && n.Data != s.tag {
		return false
	}
	if !s.pred {
		return true
	}
	for _, a := range n.Attr {
		if a.Name.Local == s.attr {
			return a.Value == s.value
		}
	}
	return false
}

func (ScanQuerier) FindAll(n *xmlquery.Node, path string) []*xmlquery.Node {
	current := []*xmlquery.Node{n}
	for _, raw := range strings.Split(path, "/") {
		if raw == "." {
			continue
		}
		st, ok := parseStep(raw)
		if !ok {
			slog.Debug("unsupported path step", "path", path, "step", raw)
			return nil
		}
		var next []*xmlquery.Node
		for _, parent := range current {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				if st.matches(c) {
					next = append(next, c)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

func (q ScanQuerier) FindFirst(n *xmlquery.Node, path string) *xmlquery.Node {
	all := q.FindAll(n, path)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}
