package xmltree

import "strings"

// OptionalText returns the text of the first node matching path, or def when
// the node is missing or its text is empty. The text is returned as is.
func OptionalText(n *Node, path, def string) string {
	if n == nil {
		return def
	}
	sub := n
	if path != "" && path != "." {
		sub = n.FindFirst(path)
	}
	if sub == nil {
		return def
	}
	text := sub.Text()
	if text == "" {
		return def
	}
	return text
}

// OptionalAttr returns attribute attr of the first node matching path, or def.
// An empty path reads the attribute from n itself.
func OptionalAttr(n *Node, path, attr, def string) string {
	if n == nil {
		return def
	}
	sub := n
	if path != "" && path != "." {
		sub = n.FindFirst(path)
	}
	if sub == nil {
		return def
	}
	v, ok := sub.Attr(attr)
	if !ok || v == "" {
		return def
	}
	return v
}

// Field describes one optional value of a record: where it lives and what it
// resolves to when absent.
type Field struct {
	Path    string
	Attr    string
	Default string
	// Trim strips surrounding whitespace and treats a blank value as absent.
	// Meant for ids, ports and codes, never for free text or secrets.
	Trim bool
}

// Text declares a field read from the text of a sub node.
func Text(path, def string) Field {
	return Field{Path: path, Default: def}
}

// Attribute declares a field read from an attribute of a sub node (or of the
// record node itself when path is empty).
func Attribute(path, attr, def string) Field {
	return Field{Path: path, Attr: attr, Default: def}
}

// Trimmed returns a copy of f that strips whitespace around the value.
func (f Field) Trimmed() Field {
	f.Trim = true
	return f
}

func (f Field) From(n *Node) string {
	var v string
	if f.Attr != "" {
		v = OptionalAttr(n, f.Path, f.Attr, f.Default)
	} else {
		v = OptionalText(n, f.Path, f.Default)
	}
	if f.Trim {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
		return f.Default
	}
	return v
}

// Texts returns the non empty texts of every node matching path.
func Texts(n *Node, path string) []string {
	if n == nil {
		return nil
	}
	var out []string
	for _, sub := range n.FindAll(path) {
		if t := strings.TrimSpace(sub.Text()); t != "" {
			out = append(out, t)
		}
	}
	return out
}
