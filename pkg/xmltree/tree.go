package xmltree

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/pkg/errors"
)

// ErrEmptyDocument is returned when the input holds no root element.
var ErrEmptyDocument = errors.New("document has no root element")

// Node is an element of a parsed report. Queries run through the Querier
// the document was parsed with.
type Node struct {
	raw *xmlquery.Node
	q   Querier
}

// ParseOption tweaks how a document is loaded.
type ParseOption func(*parseOptions)

type parseOptions struct {
	ascii bool
}

// WithASCII escapes every non-ASCII character found in text content.
func WithASCII() ParseOption {
	return func(o *parseOptions) {
		o.ascii = true
	}
}

// Parse loads raw XML and returns its document element.
func Parse(data []byte, q Querier, opts ...ParseOption) (*Node, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}
	if q == nil {
		q = ScanQuerier{}
	}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse xml")
	}

	var root *xmlquery.Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			root = c
			break
		}
	}
	if root == nil {
		return nil, ErrEmptyDocument
	}

	if o.ascii {
		transcode(root)
	}
	return &Node{raw: root, q: q}, nil
}

func transcode(n *xmlquery.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			c.Data = ToASCII(c.Data)
		case xmlquery.ElementNode:
			transcode(c)
		}
	}
}

// RootName returns the local name of the first element in data without
// building a tree. It is used to tell report formats apart.
func RootName(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", ErrEmptyDocument
		}
		if err != nil {
			return "", errors.Wrap(err, "could not read xml token")
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// Name is the element tag.
func (n *Node) Name() string {
	return n.raw.Data
}

// Text returns the concatenated character data below the node.
func (n *Node) Text() string {
	return n.raw.InnerText()
}

// Attr looks up an attribute by local name.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.raw.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// FindAll returns every node matching path relative to n, or nil when
// nothing matches.
func (n *Node) FindAll(path string) []*Node {
	raws := n.q.FindAll(n.raw, strings.TrimSpace(path))
	if len(raws) == 0 {
		return nil
	}
	out := make([]*Node, 0, len(raws))
	for _, r := range raws {
		out = append(out, &Node{raw: r, q: n.q})
	}
	return out
}

// FindFirst returns the first node matching path, or nil.
func (n *Node) FindFirst(path string) *Node {
	r := n.q.FindFirst(n.raw, strings.TrimSpace(path))
	if r == nil {
		return nil
	}
	return &Node{raw: r, q: n.q}
}
