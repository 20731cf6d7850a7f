// Package render is a reference block renderer. It turns blocks and their
// highlight runs into an element tree whose linearized text matches the
// rendered-text coordinate space, and serializes that tree as HTML.
package render

import (
	"strings"
	"unicode/utf8"
)

// Node is an element or text node of a render tree. Text nodes have an
// empty Tag.
type Node struct {
	Tag      string
	Text     string
	Classes  []string
	Attrs    map[string]string
	Children []*Node
	parent   *Node
}

// Element creates an element node
func Element(tag string, classes ...string) *Node {
	return &Node{Tag: tag, Classes: classes}
}

// TextNode creates a text node
func TextNode(text string) *Node {
	return &Node{Text: text}
}

// IsText reports whether n is a text node
func (n *Node) IsText() bool {
	return n.Tag == ""
}

// Parent returns the enclosing node, nil for a root
func (n *Node) Parent() *Node {
	return n.parent
}

// Append adds children and returns n
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.parent = n
		n.Children = append(n.Children, c)
	}
	return n
}

// SetAttr sets an attribute and returns n
func (n *Node) SetAttr(key, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
	return n
}

// AddClass appends a class and returns n
func (n *Node) AddClass(class string) *Node {
	if !n.HasClass(class) {
		n.Classes = append(n.Classes, class)
	}
	return n
}

// HasClass reports whether n carries class
func (n *Node) HasClass(class string) bool {
	for _, c := range n.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// Linear returns the text of every text node under n in document order
func (n *Node) Linear() string {
	var b strings.Builder
	n.Walk(func(c *Node) bool {
		if c.IsText() {
			b.WriteString(c.Text)
		}
		return true
	})
	return b.String()
}

// Len returns the rune length of Linear
func (n *Node) Len() int {
	total := 0
	n.Walk(func(c *Node) bool {
		if c.IsText() {
			total += utf8.RuneCountInString(c.Text)
		}
		return true
	})
	return total
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Contains reports whether other is n or one of its descendants
func (n *Node) Contains(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// TextNodes returns every text node under n in document order
func (n *Node) TextNodes() []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.IsText() {
			out = append(out, c)
		}
		return true
	})
	return out
}

// FindText returns the first text node under n whose text contains s
func (n *Node) FindText(s string) *Node {
	for _, t := range n.TextNodes() {
		if strings.Contains(t.Text, s) {
			return t
		}
	}
	return nil
}

// replace swaps child old for nodes, keeping their position
func (n *Node) replace(old *Node, nodes ...*Node) {
	for i, c := range n.Children {
		if c != old {
			continue
		}
		rest := append([]*Node(nil), n.Children[i+1:]...)
		n.Children = n.Children[:i]
		n.Append(nodes...)
		n.Children = append(n.Children, rest...)
		old.parent = nil
		return
	}
}
