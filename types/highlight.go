package types

// Highlight is a user-created colored range over a message's rendered text.
// StartIndex and EndIndex are rune offsets into the rendered (markdown
// stripped) text of the whole message, not into the raw source.
type Highlight struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Color      string `json:"color"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	Note       string `json:"note,omitempty"`
}

// HighlightRecord is a highlight as exchanged with storage, where any field may
// be missing.
type HighlightRecord struct {
	ID         string  `json:"id"`
	Text       *string `json:"text"`
	Color      string  `json:"color"`
	StartIndex *int    `json:"startIndex"`
	EndIndex   *int    `json:"endIndex"`
	Note       string  `json:"note,omitempty"`
}

// Highlight converts the record, reporting false when a required field is missing
func (r HighlightRecord) Highlight() (Highlight, bool) {
	if r.ID == "" || r.Color == "" || r.Text == nil || r.StartIndex == nil || r.EndIndex == nil {
		return Highlight{}, false
	}
	return Highlight{
		ID:         r.ID,
		Text:       *r.Text,
		Color:      r.Color,
		StartIndex: *r.StartIndex,
		EndIndex:   *r.EndIndex,
		Note:       r.Note,
	}, true
}

// Record converts a highlight to its storage form
func (h Highlight) Record() HighlightRecord {
	text, start, end := h.Text, h.StartIndex, h.EndIndex
	return HighlightRecord{
		ID:         h.ID,
		Text:       &text,
		Color:      h.Color,
		StartIndex: &start,
		EndIndex:   &end,
		Note:       h.Note,
	}
}

// HighlightNode is one node of a block's nesting tree. Start and End are
// block-local rune offsets; Color is already resolved for display.
type HighlightNode struct {
	Start    int              `json:"start"`
	End      int              `json:"end"`
	Color    string           `json:"color"`
	ID       string           `json:"id"`
	Children []*HighlightNode `json:"children,omitempty"`
}

// Layer is one highlight painted over a run
type Layer struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

// Run is a visible segment of a block's rendered text. Layers are ordered
// outermost first; an empty Layers slice is unhighlighted text. Semantic names
// the built-in decoration applied when the block has no user highlights.
type Run struct {
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Text     string  `json:"text"`
	Layers   []Layer `json:"layers,omitempty"`
	Semantic string  `json:"semantic,omitempty"`
}
