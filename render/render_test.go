package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockstream/plaintext"
	"blockstream/types"
)

func everyKind() []types.MessageBlock {
	return []types.MessageBlock{
		&types.TextBlock{Content: "Hello **world** and [docs](https://x.io)"},
		&types.DividerBlock{},
		&types.HeadingBlock{Level: 2, Content: "The *plan*"},
		&types.CodeBlock{Language: "go", Content: "func main() {\n\tprintln(\"hi\")\n}"},
		&types.ListBlock{Items: []string{"one", "**two**"}, Ordered: true},
		&types.TaskListBlock{Items: []types.TaskItem{{Text: "todo"}, {Text: "done", Checked: true}}},
		&types.TableBlock{Headers: []string{"Name", "Age"}, Rows: [][]string{{"Ann", "30"}, {"Bob", "41"}}},
		&types.BlockquoteBlock{Content: "quoted\nline"},
		&types.CalloutBlock{Variant: types.CalloutTip, Title: "Pro tip", Content: "Use `it`"},
		&types.StepsBlock{Items: []string{"Install", "Run"}},
		&types.DefinitionBlock{Term: "Term", Definition: "Meaning"},
		&types.ImageBlock{Src: "a.png", Alt: "diagram"},
		&types.ActionBlock{Data: json.RawMessage(`{"type":"open"}`)},
		&types.AskFlowBlock{SelectedText: "bit", Instruction: "Why?"},
	}
}

func TestBlockLinearTextMatchesRenderedText(t *testing.T) {
	blocks := everyKind()
	require.Len(t, blocks, len(types.AllKinds))

	for _, b := range blocks {
		t.Run(b.Kind().String(), func(t *testing.T) {
			node := Block(b, DefaultOptions())
			assert.Equal(t, plaintext.Block(b), node.Linear())
			assert.True(t, node.HasClass(ClassBlock))
		})
	}
}

func TestTreeSeparators(t *testing.T) {
	blocks := []types.MessageBlock{
		&types.TextBlock{Content: "Hello **world**"},
		&types.DividerBlock{},
		&types.CodeBlock{Language: "go", Content: "x := 1"},
		&types.ListBlock{Items: []string{"a", "b"}},
	}

	tests := []struct {
		name  string
		width int
		want  string
	}{
		{"default width", 1, "Hello world\nx := 1\na\nb"},
		{"wide", 2, "Hello world\n\nx := 1\n\na\nb"},
		{"none", 0, "Hello worldx := 1a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.SeparatorWidth = tt.width
			assert.Equal(t, tt.want, Tree(blocks, opts).Linear())
		})
	}
}

func TestChromaCodeKeepsContent(t *testing.T) {
	for _, lang := range []string{"python", "go", "no-such-language", ""} {
		content := "print(1)\nx = [1, 2]"
		node := ChromaCode(content, lang)
		require.NotNil(t, node, lang)
		assert.Equal(t, content, node.Linear(), lang)
		assert.Equal(t, "pre", node.Tag)
		assert.True(t, node.HasClass(ClassHighlighter))
	}
}

func TestCustomCodeRendererFallsBack(t *testing.T) {
	code := &types.CodeBlock{Language: "go", Content: "x := 1"}

	opts := DefaultOptions()
	opts.CodeRenderer = func(content, language string) *Node {
		return Element("div", "fancy").Append(TextNode(strings.ToUpper(content)))
	}
	node := Block(code, opts)
	assert.Equal(t, "pre", node.Tag, "renderer that changes text is ignored")
	assert.Equal(t, "x := 1", node.Linear())

	opts.CodeRenderer = func(content, language string) *Node {
		return Element("div", "fancy").Append(TextNode(content))
	}
	node = Block(code, opts)
	assert.True(t, node.HasClass("fancy"))
	assert.True(t, node.HasClass(ClassCodeBlock))
}

func TestPartialCodeUsesGrowingView(t *testing.T) {
	node := Partial(&types.CodeBlock{Language: "py", Content: "print("}, DefaultOptions())
	require.NotNil(t, node)
	assert.Equal(t, "pre", node.Tag)
	assert.True(t, node.HasClass("streaming"))
	assert.False(t, node.HasClass(ClassHighlighter))
	assert.Equal(t, "print(", node.Linear())

	assert.Nil(t, Partial(nil, DefaultOptions()))
}

func TestRunsWrapHighlights(t *testing.T) {
	blocks := []types.MessageBlock{&types.TextBlock{Content: "Hello **world**"}}
	opts := DefaultOptions()
	opts.Runs = [][]types.Run{{
		{Start: 0, End: 2, Text: "He"},
		{Start: 2, End: 8, Text: "llo wo", Layers: []types.Layer{{ID: "a", Color: "#fef08a"}}},
		{Start: 8, End: 11, Text: "rld", Layers: []types.Layer{{ID: "a", Color: "#fef08a"}, {ID: "b", Color: "#bbf7d0"}}},
	}}

	root := Tree(blocks, opts)
	assert.Equal(t, "Hello world", root.Linear(), "decoration never changes the text")

	out := Serialize(root)
	assert.Contains(t, out, `<mark class="highlight" data-highlight-id="a" style="background-color: #fef08a">llo </mark>`)
	assert.Contains(t, out, `<strong><mark class="highlight" data-highlight-id="a" style="background-color: #fef08a">wo</mark>`)
	assert.Contains(t, out, `<mark class="highlight" data-highlight-id="a" style="background-color: #fef08a"><mark class="highlight" data-highlight-id="b" style="background-color: #bbf7d0">rld</mark></mark>`)
}

func TestRunsSkipCode(t *testing.T) {
	blocks := []types.MessageBlock{&types.CodeBlock{Language: "go", Content: "x := 1"}}
	opts := DefaultOptions()
	opts.Runs = [][]types.Run{{{Start: 0, End: 6, Layers: []types.Layer{{ID: "a", Color: "#fff"}}}}}

	assert.NotContains(t, HTML(blocks, opts), "<mark")
}

func TestSemanticRun(t *testing.T) {
	blocks := []types.MessageBlock{&types.TextBlock{Content: "Note: read this"}}
	opts := DefaultOptions()
	opts.Runs = [][]types.Run{{{Start: 0, End: 15, Semantic: "Key takeaway"}}}

	assert.Contains(t, HTML(blocks, opts), `<span class="semantic semantic-key-takeaway">Note: read this</span>`)
}

func TestSerialize(t *testing.T) {
	tests := []struct {
		name  string
		block types.MessageBlock
		want  string
	}{
		{
			"escaped text with break",
			&types.TextBlock{Content: "a < b\nc"},
			`<p class="message-block block-text">a &lt; b<br>c</p>`,
		},
		{
			"divider is void",
			&types.DividerBlock{},
			`<hr class="message-block block-divider">`,
		},
		{
			"image",
			&types.ImageBlock{Src: "a.png", Alt: "x"},
			`<figure class="message-block block-image"><img alt="x" src="a.png"><figcaption>x</figcaption></figure>`,
		},
		{
			"task list keeps layout text raw",
			&types.TaskListBlock{Items: []types.TaskItem{{Text: "a", Checked: true}, {Text: "b"}}},
			"<ul class=\"task-list message-block block-tasklist\">" +
				"<li><input checked disabled type=\"checkbox\">a<span class=\"layout-break\">\n</span></li>" +
				"<li><input disabled type=\"checkbox\">b</li></ul>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Serialize(Block(tt.block, DefaultOptions())))
		})
	}
}

func TestNodeHelpers(t *testing.T) {
	text := TextNode("héllo")
	p := Element("p").Append(text, nil)
	root := Element("div").Append(p)

	assert.Equal(t, p, text.Parent())
	assert.True(t, root.Contains(text))
	assert.False(t, p.Contains(root))
	assert.Equal(t, 5, root.Len())
	assert.Same(t, text, root.FindText("llo"))
	assert.Nil(t, root.FindText("absent"))
	assert.Len(t, p.Children, 1)
}
