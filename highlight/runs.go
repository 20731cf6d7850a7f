package highlight

import (
	"strings"

	"blockstream/types"
)

// DefaultSemanticLabels are the producer's emphasis labels
var DefaultSemanticLabels = []string{"Important", "Note", "Warning", "Tip", "Key takeaway"}

// RenderRuns splits text into visible runs under the highlight tree. Every
// rune of text belongs to exactly one run; layers list the enclosing
// highlights outermost first.
func RenderRuns(text string, roots []*types.HighlightNode) []types.Run {
	runes := []rune(text)
	var runs []types.Run

	emit := func(start, end int, layers []types.Layer) {
		if start >= end {
			return
		}
		run := types.Run{Start: start, End: end, Text: string(runes[start:end])}
		if len(layers) > 0 {
			run.Layers = append([]types.Layer(nil), layers...)
		}
		runs = append(runs, run)
	}

	var walk func(nodes []*types.HighlightNode, layers []types.Layer, lo, hi int)
	walk = func(nodes []*types.HighlightNode, layers []types.Layer, lo, hi int) {
		pos := lo
		for _, n := range nodes {
			start, end := max(n.Start, pos), min(n.End, hi)
			if start >= end {
				continue
			}
			emit(pos, start, layers)
			inner := append(layers[:len(layers):len(layers)], types.Layer{ID: n.ID, Color: n.Color})
			walk(n.Children, inner, start, end)
			pos = end
		}
		emit(pos, hi, layers)
	}
	walk(roots, nil, 0, len(runes))
	return runs
}

// SemanticRuns decorates lines that open with a known label, from the label
// to the end of the line. Labels may be wrapped in "**". The result covers
// all of text in one pass with no overlaps.
func SemanticRuns(text string, labels []string) []types.Run {
	if len(labels) == 0 {
		labels = DefaultSemanticLabels
	}
	runes := []rune(text)
	var runs []types.Run
	plainFrom := 0

	flush := func(end int) {
		if plainFrom < end {
			runs = append(runs, types.Run{Start: plainFrom, End: end, Text: string(runes[plainFrom:end])})
		}
	}

	lineStart := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		lineRunes := []rune(strings.TrimSuffix(line, "\n"))
		indent := len(lineRunes) - len([]rune(strings.TrimLeft(string(lineRunes), " \t")))
		if label, ok := matchLabel(string(lineRunes[indent:]), labels); ok {
			start := lineStart + indent
			end := lineStart + len(lineRunes)
			flush(start)
			runs = append(runs, types.Run{Start: start, End: end, Text: string(runes[start:end]), Semantic: label})
			plainFrom = end
		}
		lineStart += runeLen(line)
	}
	flush(len(runes))
	return runs
}

func matchLabel(line string, labels []string) (string, bool) {
	for _, label := range labels {
		for _, form := range []string{label + ":", "**" + label + ":**", "**" + label + "**:"} {
			if strings.HasPrefix(line, form) {
				return label, true
			}
		}
	}
	return "", false
}

// Decorated reports whether any run carries a layer or a semantic label
func Decorated(runs []types.Run) bool {
	for _, r := range runs {
		if len(r.Layers) > 0 || r.Semantic != "" {
			return true
		}
	}
	return false
}
