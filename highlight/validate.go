package highlight

import (
	"fmt"
	"sort"

	"blockstream/types"
)

// Drop reasons reported by Validate
const (
	ReasonIncomplete  = "incomplete"
	ReasonOutOfBounds = "out_of_bounds"
)

// DefaultDedupePrefix is the number of text runes used in a dedupe signature
const DefaultDedupePrefix = 50

// Drop records a highlight removed from a render pass
type Drop struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Report is the outcome of validating stored highlights against a message
type Report struct {
	Valid   []types.Highlight
	Dropped []Drop
	// Mismatched lists highlights whose stored text differs from the text at
	// their offsets. They stay valid; offsets win over the cached text.
	Mismatched []string
}

// Validate checks records against the message's rendered text
func Validate(records []types.HighlightRecord, text string) Report {
	var report Report
	length := runeLen(text)
	for _, rec := range records {
		h, ok := rec.Highlight()
		if !ok {
			report.Dropped = append(report.Dropped, Drop{ID: rec.ID, Reason: ReasonIncomplete})
			continue
		}
		if h.StartIndex < 0 || h.EndIndex > length || h.StartIndex >= h.EndIndex {
			report.Dropped = append(report.Dropped, Drop{ID: h.ID, Reason: ReasonOutOfBounds})
			continue
		}
		if substring(text, h.StartIndex, h.EndIndex) != h.Text {
			report.Mismatched = append(report.Mismatched, h.ID)
		}
		report.Valid = append(report.Valid, h)
	}
	return report
}

// Signature identifies duplicate highlights: same range, same text prefix
func Signature(h types.Highlight, prefixLen int) string {
	return fmt.Sprintf("%d:%d:%s", h.StartIndex, h.EndIndex, substring(h.Text, 0, prefixLen))
}

// Dedupe keeps the first highlight of every signature
func Dedupe(hs []types.Highlight, prefixLen int) []types.Highlight {
	if prefixLen <= 0 {
		prefixLen = DefaultDedupePrefix
	}
	seen := make(map[string]bool, len(hs))
	out := make([]types.Highlight, 0, len(hs))
	for _, h := range hs {
		sig := Signature(h, prefixLen)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, h)
	}
	return out
}

// Project clips highlights to the block span [blockStart, blockEnd) and
// translates them to block-local offsets. Colors are copied unresolved.
func Project(hs []types.Highlight, blockStart, blockEnd int) []*types.HighlightNode {
	var out []*types.HighlightNode
	if blockEnd <= blockStart {
		return out
	}
	for _, h := range hs {
		if h.StartIndex >= blockEnd || h.EndIndex <= blockStart {
			continue
		}
		out = append(out, &types.HighlightNode{
			Start: max(0, h.StartIndex-blockStart),
			End:   min(blockEnd-blockStart, h.EndIndex-blockStart),
			Color: h.Color,
			ID:    h.ID,
		})
	}
	return out
}

// BuildTree nests block-local ranges. Ranges are ordered by start, longer
// first on ties, so a containing range becomes the ancestor. A range that runs
// past the end of its parent is split there and the remainder placed again,
// keeping every color visible.
func BuildTree(nodes []*types.HighlightNode) []*types.HighlightNode {
	queue := make([]*types.HighlightNode, 0, len(nodes))
	for _, n := range nodes {
		if n.Start >= n.End {
			continue
		}
		queue = append(queue, &types.HighlightNode{Start: n.Start, End: n.End, Color: n.Color, ID: n.ID})
	}
	sort.SliceStable(queue, func(i, j int) bool { return less(queue[i], queue[j]) })

	var roots, stack []*types.HighlightNode
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for len(stack) > 0 && stack[len(stack)-1].End <= cur.Start {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, cur)
			stack = append(stack, cur)
			continue
		}

		parent := stack[len(stack)-1]
		if cur.End > parent.End {
			rest := &types.HighlightNode{Start: parent.End, End: cur.End, Color: cur.Color, ID: cur.ID}
			cur.End = parent.End
			at := sort.Search(len(queue), func(i int) bool { return less(rest, queue[i]) })
			queue = append(queue[:at], append([]*types.HighlightNode{rest}, queue[at:]...)...)
		}
		parent.Children = append(parent.Children, cur)
		stack = append(stack, cur)
	}
	return roots
}

func less(a, b *types.HighlightNode) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End-a.Start > b.End-b.Start
}
