// Package plaintext projects block content onto rendered text: what the user
// sees once markdown syntax is gone. Highlight offsets are counted in this
// coordinate space.
package plaintext

import (
	"strings"
	"sync"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"blockstream/types"
)

// Style is a set of inline presentation flags
type Style uint8

const (
	StyleBold Style = 1 << iota
	StyleItalic
	StyleCode
	StyleStrike
	StyleLink
)

// Has reports whether all flags in f are set
func (s Style) Has(f Style) bool {
	return s&f == f
}

// Segment is a run of rendered text sharing one inline style
type Segment struct {
	Text  string `json:"text"`
	Style Style  `json:"style,omitempty"`
	Href  string `json:"href,omitempty"`
}

// DefaultCacheSize caps the shared projection cache
const DefaultCacheSize = 500

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough),
)

var (
	cacheMu sync.RWMutex
	cache   *lru.Cache[string, []Segment]
)

func init() {
	if err := SetCacheSize(DefaultCacheSize); err != nil {
		panic("failed to initialize plaintext cache: " + err.Error())
	}
}

// SetCacheSize replaces the shared projection cache with an empty one of the
// given capacity.
func SetCacheSize(size int) error {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, []Segment](size)
	if err != nil {
		return err
	}
	cacheMu.Lock()
	cache = c
	cacheMu.Unlock()
	return nil
}

func sharedCache() *lru.Cache[string, []Segment] {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	return cache
}

// Strip returns the rendered text of inline markdown
func Strip(md string) string {
	var b strings.Builder
	for _, seg := range Segments(md) {
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Len returns the rendered length of md in runes
func Len(md string) int {
	return utf8.RuneCountInString(Strip(md))
}

// Segments splits the rendered text of md into styled runs. Paragraph and
// line breaks become "\n" segments. The returned slice must not be modified.
func Segments(md string) []Segment {
	if md == "" {
		return nil
	}
	c := sharedCache()
	if segs, ok := c.Get(md); ok {
		return segs
	}
	segs := project(md)
	c.Add(md, segs)
	return segs
}

type projector struct {
	source    []byte
	segments  []Segment
	needBreak bool
}

func project(md string) []Segment {
	p := &projector{source: []byte(md)}
	doc := markdown.Parser().Parse(text.NewReader(p.source))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			p.blockBreak()
		}

		switch node := n.(type) {
		case *ast.Text:
			p.write(string(node.Segment.Value(p.source)), styleOf(node), hrefOf(node))
			if node.SoftLineBreak() || node.HardLineBreak() {
				p.write("\n", 0, "")
			}
		case *ast.String:
			p.write(string(node.Value), styleOf(node), hrefOf(node))
		case *ast.AutoLink:
			label := string(node.Label(p.source))
			p.write(label, styleOf(node)|StyleLink, string(node.URL(p.source)))
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			p.writeLines(n)
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return p.segments
}

func (p *projector) blockBreak() {
	if len(p.segments) > 0 {
		p.needBreak = true
	}
}

func (p *projector) write(s string, style Style, href string) {
	if s == "" {
		return
	}
	if p.needBreak {
		p.needBreak = false
		if last := p.segments[len(p.segments)-1]; !strings.HasSuffix(last.Text, "\n") {
			p.append("\n", 0, "")
		}
	}
	p.append(s, style, href)
}

func (p *projector) append(s string, style Style, href string) {
	if n := len(p.segments); n > 0 && p.segments[n-1].Style == style && p.segments[n-1].Href == href {
		p.segments[n-1].Text += s
		return
	}
	p.segments = append(p.segments, Segment{Text: s, Style: style, Href: href})
}

func (p *projector) writeLines(n ast.Node) {
	lines := n.Lines()
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(p.source))
	}
	p.write(strings.TrimRight(b.String(), "\n"), StyleCode, "")
}

// styleOf collects the inline styles of every ancestor of n
func styleOf(n ast.Node) Style {
	var style Style
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch node := p.(type) {
		case *ast.Emphasis:
			if node.Level >= 2 {
				style |= StyleBold
			} else {
				style |= StyleItalic
			}
		case *ast.CodeSpan:
			style |= StyleCode
		case *extast.Strikethrough:
			style |= StyleStrike
		case *ast.Link:
			style |= StyleLink
		}
	}
	return style
}

func hrefOf(n ast.Node) string {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if link, ok := p.(*ast.Link); ok {
			return string(link.Destination)
		}
	}
	return ""
}

// Block returns the rendered text of one block
func Block(b types.MessageBlock) string {
	switch v := b.(type) {
	case *types.TextBlock:
		return Strip(v.Content)
	case *types.HeadingBlock:
		return Strip(v.Content)
	case *types.BlockquoteBlock:
		return Strip(v.Content)
	case *types.CodeBlock:
		return v.Content
	case *types.ListBlock:
		return stripItems(v.Items)
	case *types.StepsBlock:
		return stripItems(v.Items)
	case *types.TaskListBlock:
		items := make([]string, len(v.Items))
		for i, item := range v.Items {
			items[i] = item.Text
		}
		return stripItems(items)
	case *types.TableBlock:
		rows := make([]string, 0, len(v.Rows)+1)
		rows = append(rows, stripCells(v.Headers))
		for _, row := range v.Rows {
			rows = append(rows, stripCells(row))
		}
		return strings.Join(rows, "\n")
	case *types.CalloutBlock:
		return joinNonEmpty(Strip(v.Title), Strip(v.Content))
	case *types.DefinitionBlock:
		return joinNonEmpty(Strip(v.Term), Strip(v.Definition))
	case *types.ImageBlock:
		return v.Alt
	case *types.AskFlowBlock:
		return joinNonEmpty(v.SelectedText, v.Instruction)
	case *types.DividerBlock, *types.ActionBlock:
		return ""
	default:
		types.UnhandledBlock(b)
		return ""
	}
}

// BlockLen returns the rendered length of a block in runes
func BlockLen(b types.MessageBlock) int {
	return utf8.RuneCountInString(Block(b))
}

func stripItems(items []string) string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = Strip(item)
	}
	return strings.Join(out, "\n")
}

func stripCells(cells []string) string {
	out := make([]string, len(cells))
	for i, cell := range cells {
		out[i] = Strip(cell)
	}
	return strings.Join(out, "\t")
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
