package highlight

import (
	"errors"

	"github.com/google/uuid"

	"blockstream/render"
	"blockstream/types"
)

// Selection capture failures. A rejected selection produces no highlight.
var (
	ErrCollapsed        = errors.New("selection is collapsed")
	ErrOutsideContainer = errors.New("selection extends outside the container")
	ErrInsideCode       = errors.New("selection touches code")
	ErrDegenerate       = errors.New("selection bounds are degenerate")
)

// Point is one selection boundary. For a text node Offset counts runes into
// its text; for an element it is a child index.
type Point struct {
	Node   *render.Node
	Offset int
}

// Selection is a user selection over a render tree. Text is what the user
// selected; when empty it is read from the tree between the two points.
type Selection struct {
	Anchor Point
	Focus  Point
	Text   string
}

// Offsets is a captured range in the message's rendered text
type Offsets struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ComputeOffsets converts a selection into rendered-text offsets relative to
// root. start is the rendered length of everything before the selection; end
// is start plus the length of the selected text.
func ComputeOffsets(root *render.Node, sel Selection) (Offsets, error) {
	if root == nil || sel.Anchor.Node == nil || sel.Focus.Node == nil {
		return Offsets{}, ErrOutsideContainer
	}
	if sel.Anchor == sel.Focus {
		return Offsets{}, ErrCollapsed
	}
	if !root.Contains(sel.Anchor.Node) || !root.Contains(sel.Focus.Node) {
		return Offsets{}, ErrOutsideContainer
	}
	if inCode(sel.Anchor.Node) || inCode(sel.Focus.Node) {
		return Offsets{}, ErrInsideCode
	}

	a, f := position(root, sel.Anchor), position(root, sel.Focus)
	start, stop := min(a, f), max(a, f)
	if start == stop {
		return Offsets{}, ErrCollapsed
	}

	text := sel.Text
	if text == "" {
		text = substring(root.Linear(), start, stop)
	}
	end := start + runeLen(text)
	if end <= start || end > root.Len() {
		return Offsets{}, ErrDegenerate
	}
	return Offsets{Start: start, End: end}, nil
}

// inCode reports whether n sits in a code presentation
func inCode(n *render.Node) bool {
	for p := n; p != nil; p = p.Parent() {
		if p.Tag == "code" || p.Tag == "pre" ||
			p.HasClass(render.ClassCodeBlock) || p.HasClass(render.ClassHighlighter) {
			return true
		}
	}
	return false
}

// position is the rendered length of root's text before p
func position(root *render.Node, p Point) int {
	if p.Node.IsText() {
		return before(root, p.Node) + max(0, min(p.Offset, runeLen(p.Node.Text)))
	}
	if p.Offset < len(p.Node.Children) {
		return before(root, p.Node.Children[max(0, p.Offset)])
	}
	return before(root, p.Node) + p.Node.Len()
}

// before counts the runes of text nodes that precede target in document order
func before(root, target *render.Node) int {
	total := 0
	found := false
	root.Walk(func(n *render.Node) bool {
		if found {
			return false
		}
		if n == target {
			found = true
			return false
		}
		if n.IsText() {
			total += runeLen(n.Text)
		}
		return true
	})
	return total
}

// NewHighlight creates a highlight for captured offsets
func NewHighlight(off Offsets, text, color, note string) types.Highlight {
	return types.Highlight{
		ID:         uuid.New().String(),
		Text:       text,
		Color:      color,
		StartIndex: off.Start,
		EndIndex:   off.End,
		Note:       note,
	}
}
