package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BlockKind identifies one variant of the MessageBlock union.
//
// The set is closed: every consumer of blocks switches over the concrete
// variant types, and AllKinds lists every kind so tests can assert that each
// consumer handles all of them.
type BlockKind int

const (
	KindText BlockKind = iota
	KindDivider
	KindHeading
	KindCode
	KindList
	KindTaskList
	KindTable
	KindBlockquote
	KindCallout
	KindSteps
	KindDefinition
	KindImage
	KindAction
	KindAskFlow
)

// AllKinds lists every block kind in declaration order
var AllKinds = []BlockKind{
	KindText, KindDivider, KindHeading, KindCode, KindList, KindTaskList, KindTable,
	KindBlockquote, KindCallout, KindSteps, KindDefinition, KindImage, KindAction, KindAskFlow,
}

var kindNames = map[BlockKind]string{
	KindText:       "text",
	KindDivider:    "divider",
	KindHeading:    "heading",
	KindCode:       "code",
	KindList:       "list",
	KindTaskList:   "tasklist",
	KindTable:      "table",
	KindBlockquote: "blockquote",
	KindCallout:    "callout",
	KindSteps:      "steps",
	KindDefinition: "definition",
	KindImage:      "image",
	KindAction:     "action",
	KindAskFlow:    "ask_flow",
}

// String returns the wire name of the BlockKind
func (k BlockKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseBlockKind converts a wire name to a BlockKind
func ParseBlockKind(name string) (BlockKind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for kind, n := range kindNames {
		if n == name {
			return kind, true
		}
	}
	return KindText, false
}

// Span is a block's position in the canonical rendered-text coordinate space
// of its message. Both ends are optional; they are filled in once the
// preceding blocks are known.
type Span struct {
	StartIndex *int `json:"startIndex,omitempty"`
	EndIndex   *int `json:"endIndex,omitempty"`
}

// Bounds returns the span as plain integers
func (s Span) Bounds() (start, end int, ok bool) {
	if s.StartIndex == nil || s.EndIndex == nil {
		return 0, 0, false
	}
	return *s.StartIndex, *s.EndIndex, true
}

// SetBounds replaces both ends of the span
func (s *Span) SetBounds(start, end int) {
	s.StartIndex = &start
	s.EndIndex = &end
}

func (s *Span) span() *Span { return s }

// MessageBlock is one classified unit of message content.
//
// Implementations live only in this package; the unexported methods seal the
// union so a consumer's type switch can treat the variants listed in AllKinds
// as exhaustive. A type switch that meets an unexpected variant should call
// UnhandledBlock rather than silently skip it.
type MessageBlock interface {
	Kind() BlockKind
	span() *Span
	sealed()
}

// BlockSpan returns a pointer to the block's span so callers can read or set it
func BlockSpan(b MessageBlock) *Span {
	return b.span()
}

// UnhandledBlock panics for a block variant that a consumer does not handle.
// It marks the default branch of exhaustive type switches.
func UnhandledBlock(b MessageBlock) {
	panic(fmt.Sprintf("unhandled message block variant %T", b))
}

// TextBlock is a paragraph run of free-form markdown
type TextBlock struct {
	Span
	Content string `json:"content"`
}

// DividerBlock is a horizontal rule
type DividerBlock struct {
	Span
}

// HeadingBlock is a section heading; Level is clamped to 1..3
type HeadingBlock struct {
	Span
	Level   int    `json:"level"`
	Content string `json:"content"`
}

// CodeBlock is a fenced code run. Language is never empty once parsed: an
// omitted fence tag is replaced by a best-effort guess.
type CodeBlock struct {
	Span
	Language string `json:"language"`
	Content  string `json:"content"`
}

// ListBlock is a bulleted or numbered list
type ListBlock struct {
	Span
	Items   []string `json:"items"`
	Ordered bool     `json:"ordered,omitempty"`
}

// TaskItem is one checkbox line of a TaskListBlock
type TaskItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// TaskListBlock is a run of checkbox lines
type TaskListBlock struct {
	Span
	Items []TaskItem `json:"items"`
}

// TableBlock is a pipe table. The separator row is not part of Rows.
type TableBlock struct {
	Span
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// BlockquoteBlock is a run of quoted lines with the quote markers removed
type BlockquoteBlock struct {
	Span
	Content string `json:"content"`
}

// CalloutVariant is the visual flavour of a callout
type CalloutVariant string

const (
	CalloutInfo    CalloutVariant = "info"
	CalloutWarning CalloutVariant = "warning"
	CalloutSuccess CalloutVariant = "success"
	CalloutTip     CalloutVariant = "tip"
)

// CalloutBlock is a producer-marked note box
type CalloutBlock struct {
	Span
	Variant CalloutVariant `json:"variant"`
	Content string         `json:"content"`
	Title   string         `json:"title,omitempty"`
}

// StepsBlock is a producer-marked step sequence
type StepsBlock struct {
	Span
	Items []string `json:"items"`
}

// DefinitionBlock is a producer-marked term/definition pair
type DefinitionBlock struct {
	Span
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// ImageBlock is a standalone image line
type ImageBlock struct {
	Span
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// ActionBlock carries an opaque action payload for the renderer
type ActionBlock struct {
	Span
	Data json.RawMessage `json:"data"`
}

// AskFlowBlock carries the context of a follow-up question about a selection
type AskFlowBlock struct {
	Span
	SelectedText string `json:"selectedText"`
	Instruction  string `json:"instruction"`
}

func (*TextBlock) Kind() BlockKind       { return KindText }
func (*DividerBlock) Kind() BlockKind    { return KindDivider }
func (*HeadingBlock) Kind() BlockKind    { return KindHeading }
func (*CodeBlock) Kind() BlockKind       { return KindCode }
func (*ListBlock) Kind() BlockKind       { return KindList }
func (*TaskListBlock) Kind() BlockKind   { return KindTaskList }
func (*TableBlock) Kind() BlockKind      { return KindTable }
func (*BlockquoteBlock) Kind() BlockKind { return KindBlockquote }
func (*CalloutBlock) Kind() BlockKind    { return KindCallout }
func (*StepsBlock) Kind() BlockKind      { return KindSteps }
func (*DefinitionBlock) Kind() BlockKind { return KindDefinition }
func (*ImageBlock) Kind() BlockKind      { return KindImage }
func (*ActionBlock) Kind() BlockKind     { return KindAction }
func (*AskFlowBlock) Kind() BlockKind    { return KindAskFlow }

func (*TextBlock) sealed()       {}
func (*DividerBlock) sealed()    {}
func (*HeadingBlock) sealed()    {}
func (*CodeBlock) sealed()       {}
func (*ListBlock) sealed()       {}
func (*TaskListBlock) sealed()   {}
func (*TableBlock) sealed()      {}
func (*BlockquoteBlock) sealed() {}
func (*CalloutBlock) sealed()    {}
func (*StepsBlock) sealed()      {}
func (*DefinitionBlock) sealed() {}
func (*ImageBlock) sealed()      {}
func (*ActionBlock) sealed()     {}
func (*AskFlowBlock) sealed()    {}

// NewBlock returns a zero value of the variant for kind
func NewBlock(kind BlockKind) (MessageBlock, error) {
	switch kind {
	case KindText:
		return &TextBlock{}, nil
	case KindDivider:
		return &DividerBlock{}, nil
	case KindHeading:
		return &HeadingBlock{}, nil
	case KindCode:
		return &CodeBlock{}, nil
	case KindList:
		return &ListBlock{}, nil
	case KindTaskList:
		return &TaskListBlock{}, nil
	case KindTable:
		return &TableBlock{}, nil
	case KindBlockquote:
		return &BlockquoteBlock{}, nil
	case KindCallout:
		return &CalloutBlock{}, nil
	case KindSteps:
		return &StepsBlock{}, nil
	case KindDefinition:
		return &DefinitionBlock{}, nil
	case KindImage:
		return &ImageBlock{}, nil
	case KindAction:
		return &ActionBlock{}, nil
	case KindAskFlow:
		return &AskFlowBlock{}, nil
	}
	return nil, fmt.Errorf("unknown block kind %d", kind)
}

// CloneBlock returns a deep copy of b
func CloneBlock(b MessageBlock) MessageBlock {
	switch v := b.(type) {
	case *TextBlock:
		c := *v
		c.Span = v.Span.clone()
		return &c
	case *DividerBlock:
		c := *v
		c.Span = v.Span.clone()
		return &c
	case *HeadingBlock:
		c := *v
		c.Span = v.Span.clone()
		return &c
	case *CodeBlock:
		c := *v
		c.Span = v.Span.clone()
		return &c
	case *ListBlock:
		c := *v
		c.Span = v.Span.clone()
		c.Items = append([]string(nil), v.Items...)
		return &c
	case *TaskListBlock:
		c := *v
		c.Span = v.Span.clone()
		c.Items = append([]TaskItem(nil), v.Items...)
		return &c
	case *TableBlock:
		c := *v
		c.Span = v.Span.clone()
		c.Headers = append([]string(nil), v.Headers...)
		c.Rows = make([][]string, len(v.Rows))
		for i, row := range v.Rows {
			c.Rows[i] = append([]string(nil), row...)
		}
		return &c
	case *BlockquoteBlock:
		c := *v
		c.Span = v.Span.clone()
		return &c
	case *CalloutBlock:
		c := *v
		c.Span = v.Span.clone()
		return &c
	case *StepsBlock:
		c := *v
		c.Span = v.Span.clone()
		c.Items = append([]string(nil), v.Items...)
		return &c
	case *DefinitionBlock:
		c := *v
		c.Span = v.Span.clone()
		return &c
	case *ImageBlock:
		c := *v
		c.Span = v.Span.clone()
		return &c
	case *ActionBlock:
		c := *v
		c.Span = v.Span.clone()
		c.Data = append(json.RawMessage(nil), v.Data...)
		return &c
	case *AskFlowBlock:
		c := *v
		c.Span = v.Span.clone()
		return &c
	default:
		UnhandledBlock(b)
		return nil
	}
}

func (s Span) clone() Span {
	var c Span
	if s.StartIndex != nil {
		v := *s.StartIndex
		c.StartIndex = &v
	}
	if s.EndIndex != nil {
		v := *s.EndIndex
		c.EndIndex = &v
	}
	return c
}
