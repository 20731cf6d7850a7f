package render

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"blockstream/plaintext"
	"blockstream/types"
)

// Classes that mark code presentation. Selection capture refuses endpoints
// under any of them.
const (
	ClassCodeBlock   = "code-block"
	ClassHighlighter = "syntax-highlighter"
	ClassSeparator   = "block-separator"
	ClassLayout      = "layout-break"
	ClassBlock       = "message-block"
)

// CodeRenderer builds the presentation of a code block. The linear text of
// the returned node must equal content; otherwise the plain view is used.
type CodeRenderer func(content, language string) *Node

// Options configures tree construction
type Options struct {
	// SeparatorWidth is the number of "\n" characters between non-empty blocks
	SeparatorWidth int
	CodeRenderer   CodeRenderer
	// Runs holds the highlight runs of each block, indexed like the blocks.
	// Missing or empty entries leave a block undecorated.
	Runs [][]types.Run
}

// DefaultOptions returns options with a one character separator and the
// chroma code view
func DefaultOptions() Options {
	return Options{SeparatorWidth: 1, CodeRenderer: ChromaCode}
}

// Tree renders blocks into a single root whose linear text is the message's
// rendered text with separators between non-empty blocks.
func Tree(blocks []types.MessageBlock, opts Options) *Node {
	root := Element("div", "message")
	seen := false
	for i, b := range blocks {
		node := Block(b, opts)
		node.SetAttr("data-index", strconv.Itoa(i))
		if i < len(opts.Runs) && b.Kind() != types.KindCode {
			applyRuns(node, opts.Runs[i])
		}
		empty := node.Len() == 0
		if !empty && seen && opts.SeparatorWidth > 0 {
			root.Append(Element("span", ClassSeparator).Append(
				TextNode(strings.Repeat("\n", opts.SeparatorWidth)),
			))
		}
		if !empty {
			seen = true
		}
		root.Append(node)
	}
	return root
}

// Partial renders the block currently being streamed. Code grows in a plain
// view until the fence closes.
func Partial(b types.MessageBlock, opts Options) *Node {
	if b == nil {
		return nil
	}
	if code, ok := b.(*types.CodeBlock); ok {
		node := plainCode(code.Content, code.Language)
		node.AddClass("streaming")
		return node
	}
	node := Block(b, opts)
	node.AddClass("streaming")
	return node
}

// Block renders one block. Its linear text equals plaintext.Block(b).
func Block(b types.MessageBlock, opts Options) *Node {
	var node *Node
	switch v := b.(type) {
	case *types.TextBlock:
		node = Element("p").Append(inline(v.Content)...)
	case *types.HeadingBlock:
		level := v.Level
		if level < 1 || level > 3 {
			level = 1
		}
		node = Element("h"+strconv.Itoa(level)).Append(inline(v.Content)...)
	case *types.BlockquoteBlock:
		node = Element("blockquote").Append(inline(v.Content)...)
	case *types.CodeBlock:
		node = codeNode(v, opts)
	case *types.ListBlock:
		tag := "ul"
		if v.Ordered {
			tag = "ol"
		}
		node = items(Element(tag), v.Items, nil)
	case *types.StepsBlock:
		node = items(Element("ol", "steps"), v.Items, nil)
	case *types.TaskListBlock:
		texts := make([]string, len(v.Items))
		for i, item := range v.Items {
			texts[i] = item.Text
		}
		node = items(Element("ul", "task-list"), texts, func(i int, li *Node) {
			box := Element("input").SetAttr("type", "checkbox").SetAttr("disabled", "")
			if v.Items[i].Checked {
				box.SetAttr("checked", "")
			}
			li.Append(box)
		})
	case *types.TableBlock:
		node = table(v)
	case *types.CalloutBlock:
		node = Element("div", "callout", "callout-"+string(v.Variant))
		title := plaintext.Strip(v.Title) != ""
		if title {
			node.Append(Element("div", "callout-title").Append(inline(v.Title)...))
		}
		body := Element("div", "callout-body").Append(inline(v.Content)...)
		if title && body.Len() > 0 {
			node.Children[0].Append(layoutBreak("\n"))
		}
		node.Append(body)
	case *types.DefinitionBlock:
		term := Element("dt").Append(inline(v.Term)...)
		def := Element("dd").Append(inline(v.Definition)...)
		if term.Len() > 0 && def.Len() > 0 {
			term.Append(layoutBreak("\n"))
		}
		node = Element("dl").Append(term, def)
	case *types.ImageBlock:
		img := Element("img").SetAttr("src", v.Src).SetAttr("alt", v.Alt)
		node = Element("figure").Append(img)
		if v.Alt != "" {
			node.Append(Element("figcaption").Append(TextNode(v.Alt)))
		}
	case *types.ActionBlock:
		node = Element("div", "action").SetAttr("data-action", string(v.Data))
	case *types.AskFlowBlock:
		node = Element("div", "ask-flow")
		if v.SelectedText != "" {
			sel := Element("blockquote", "ask-flow-selection").Append(TextNode(v.SelectedText))
			if v.Instruction != "" {
				sel.Append(layoutBreak("\n"))
			}
			node.Append(sel)
		}
		if v.Instruction != "" {
			node.Append(Element("p", "ask-flow-instruction").Append(TextNode(v.Instruction)))
		}
	case *types.DividerBlock:
		node = Element("hr")
	default:
		types.UnhandledBlock(b)
	}
	node.AddClass(ClassBlock)
	node.AddClass("block-" + b.Kind().String())
	return node
}

// inline converts rendered segments into styled inline nodes
func inline(md string) []*Node {
	segs := plaintext.Segments(md)
	out := make([]*Node, 0, len(segs))
	for _, seg := range segs {
		node := TextNode(seg.Text)
		if seg.Style.Has(plaintext.StyleCode) {
			node = Element("code").Append(node)
		}
		if seg.Style.Has(plaintext.StyleStrike) {
			node = Element("del").Append(node)
		}
		if seg.Style.Has(plaintext.StyleItalic) {
			node = Element("em").Append(node)
		}
		if seg.Style.Has(plaintext.StyleBold) {
			node = Element("strong").Append(node)
		}
		if seg.Style.Has(plaintext.StyleLink) {
			node = Element("a").SetAttr("href", seg.Href).Append(node)
		}
		out = append(out, node)
	}
	return out
}

func layoutBreak(s string) *Node {
	return Element("span", ClassLayout).Append(TextNode(s))
}

func items(list *Node, texts []string, decorate func(int, *Node)) *Node {
	for i, text := range texts {
		li := Element("li")
		if decorate != nil {
			decorate(i, li)
		}
		li.Append(inline(text)...)
		if i < len(texts)-1 {
			li.Append(layoutBreak("\n"))
		}
		list.Append(li)
	}
	return list
}

func table(t *types.TableBlock) *Node {
	row := func(cells []string, tag string, last bool) *Node {
		tr := Element("tr")
		for i, cell := range cells {
			td := Element(tag).Append(inline(cell)...)
			switch {
			case i < len(cells)-1:
				td.Append(layoutBreak("\t"))
			case !last:
				td.Append(layoutBreak("\n"))
			}
			tr.Append(td)
		}
		if len(cells) == 0 && !last {
			tr.Append(layoutBreak("\n"))
		}
		return tr
	}

	node := Element("table")
	node.Append(Element("thead").Append(row(t.Headers, "th", len(t.Rows) == 0)))
	if len(t.Rows) > 0 {
		body := Element("tbody")
		for i, r := range t.Rows {
			body.Append(row(r, "td", i == len(t.Rows)-1))
		}
		node.Append(body)
	}
	return node
}

func codeNode(c *types.CodeBlock, opts Options) *Node {
	view := opts.CodeRenderer
	if view == nil {
		view = ChromaCode
	}
	if node := view(c.Content, c.Language); node != nil && node.Linear() == c.Content {
		node.AddClass(ClassCodeBlock)
		return node
	}
	return plainCode(c.Content, c.Language)
}

func plainCode(content, language string) *Node {
	code := Element("code", "language-"+language).Append(TextNode(content))
	return Element("pre", ClassCodeBlock).SetAttr("data-language", language).Append(code)
}

// ChromaCode is the default code view: a pre element whose tokens carry the
// chroma short class names.
func ChromaCode(content, language string) *Node {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(content)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return nil
	}

	code := Element("code", "language-"+language, "chroma")
	remaining := utf8.RuneCountInString(content)
	for _, tok := range iterator.Tokens() {
		if tok.Value == "" || remaining <= 0 {
			continue
		}
		value := tok.Value
		// Tokenise may append a trailing newline the content never had
		if n := utf8.RuneCountInString(value); n > remaining {
			value = string([]rune(value)[:remaining])
		}
		remaining -= utf8.RuneCountInString(value)

		class := tokenClass(tok.Type)
		if class == "" {
			code.Append(TextNode(value))
			continue
		}
		code.Append(Element("span", class).Append(TextNode(value)))
	}
	return Element("pre", ClassHighlighter).SetAttr("data-language", language).Append(code)
}

func tokenClass(t chroma.TokenType) string {
	for _, candidate := range []chroma.TokenType{t, t.SubCategory(), t.Category()} {
		if class, ok := chroma.StandardTypes[candidate]; ok && class != "" {
			return class
		}
	}
	return ""
}

// applyRuns splits the text nodes of a block at run boundaries and wraps the
// decorated pieces. Layers nest outermost first.
func applyRuns(block *Node, runs []types.Run) {
	if len(runs) == 0 {
		return
	}
	offset := 0
	for _, text := range block.TextNodes() {
		runes := []rune(text.Text)
		start, end := offset, offset+len(runes)
		offset = end
		if len(runes) == 0 || text.Parent() == nil {
			continue
		}

		var pieces []*Node
		changed := false
		pos := start
		for _, run := range runs {
			lo, hi := max(run.Start, pos), min(run.End, end)
			if lo >= hi {
				continue
			}
			if lo > pos {
				pieces = append(pieces, TextNode(string(runes[pos-start:lo-start])))
			}
			piece := TextNode(string(runes[lo-start : hi-start]))
			wrapped := wrapRun(piece, run)
			changed = changed || wrapped != piece
			pieces = append(pieces, wrapped)
			pos = hi
		}
		if !changed {
			continue
		}
		if pos < end {
			pieces = append(pieces, TextNode(string(runes[pos-start:])))
		}
		text.Parent().replace(text, pieces...)
	}
}

func wrapRun(text *Node, run types.Run) *Node {
	node := text
	for i := len(run.Layers) - 1; i >= 0; i-- {
		layer := run.Layers[i]
		mark := Element("mark", "highlight").
			SetAttr("data-highlight-id", layer.ID).
			SetAttr("style", "background-color: "+layer.Color)
		node = mark.Append(node)
	}
	if len(run.Layers) == 0 && run.Semantic != "" {
		node = Element("span", "semantic", "semantic-"+slug(run.Semantic)).Append(node)
	}
	return node
}

func slug(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
