package render

import (
	"html"
	"sort"
	"strings"

	"blockstream/types"
)

var voidElements = map[string]bool{
	"br": true, "hr": true, "img": true, "input": true,
}

// HTML renders blocks with their highlight runs as an HTML fragment
func HTML(blocks []types.MessageBlock, opts Options) string {
	return Serialize(Tree(blocks, opts))
}

// Serialize writes n as HTML. Line breaks in running text become <br>;
// preformatted content and layout text are written as is.
func Serialize(n *Node) string {
	var b strings.Builder
	serialize(&b, n, false)
	return b.String()
}

func serialize(b *strings.Builder, n *Node, raw bool) {
	if n.IsText() {
		text := html.EscapeString(n.Text)
		if !raw {
			text = strings.ReplaceAll(text, "\n", "<br>")
		}
		b.WriteString(text)
		return
	}

	b.WriteByte('<')
	b.WriteString(n.Tag)
	if len(n.Classes) > 0 {
		b.WriteString(` class="`)
		b.WriteString(html.EscapeString(strings.Join(n.Classes, " ")))
		b.WriteByte('"')
	}
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		if v := n.Attrs[k]; v != "" {
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(v))
			b.WriteByte('"')
		}
	}
	b.WriteByte('>')
	if voidElements[n.Tag] {
		return
	}

	raw = raw || n.Tag == "pre" || n.HasClass(ClassSeparator) || n.HasClass(ClassLayout)
	for _, c := range n.Children {
		serialize(b, c, raw)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}
