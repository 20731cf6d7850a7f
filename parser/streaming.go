package parser

import (
	"blockstream/types"
)

// Parse classifies a complete message into blocks. Metadata tags are stripped
// first; unterminated runs close at the end of the text.
func Parse(text string) []types.MessageBlock {
	return newLineScanner(FilterComplete(text), true).scan().blocks
}

// ParseStreaming classifies the text accumulated so far. Blocks whose closing
// condition has been observed are settled and will not change on later calls;
// the block at the frontier, if any, is returned as Partial.
func ParseStreaming(accumulated string) types.StreamResult {
	return parseVisible(VisibleText(accumulated))
}

// VisibleText is what a Filter would have emitted after consuming text in
// any chunking: complete tags removed and a trailing tag prefix held back.
func VisibleText(text string) string {
	stripped, _ := defaultTagRecognizer.Strip(text)
	if pos := defaultTagRecognizer.PendingTagStart(stripped); pos >= 0 {
		return stripped[:pos]
	}
	return stripped
}

func parseVisible(text string) types.StreamResult {
	s := newLineScanner(text, false)
	res := s.scan()
	out := types.StreamResult{Blocks: types.Blocks(res.blocks)}
	if res.partialAt >= 0 {
		out.Partial = s.partial(res.partialAt)
	}
	return out
}
