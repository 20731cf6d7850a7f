// Package highlight maps user selections onto rendered-text offsets and
// projects stored highlights back onto blocks as nested, colored runs.
package highlight

import (
	"strings"
	"unicode/utf8"

	"blockstream/plaintext"
	"blockstream/types"
)

// DefaultSeparatorWidth is the implicit boundary counted between non-empty blocks
const DefaultSeparatorWidth = 1

// AssignSpans sets each block's span in the message's rendered-text space and
// returns the total length. sep characters are counted before every non-empty
// block that follows an earlier non-empty block; empty blocks get a zero
// width span at the cursor.
func AssignSpans(blocks []types.MessageBlock, sep int) int {
	cursor := 0
	seen := false
	for _, b := range blocks {
		length := plaintext.BlockLen(b)
		if length > 0 {
			if seen {
				cursor += sep
			}
			seen = true
		}
		types.BlockSpan(b).SetBounds(cursor, cursor+length)
		cursor += length
	}
	return cursor
}

// MessageText returns the rendered text of the whole message, with sep
// newlines between non-empty blocks. Its rune length equals AssignSpans.
func MessageText(blocks []types.MessageBlock, sep int) string {
	var b strings.Builder
	seen := false
	for _, block := range blocks {
		text := plaintext.Block(block)
		if text == "" {
			continue
		}
		if seen {
			b.WriteString(strings.Repeat("\n", sep))
		}
		seen = true
		b.WriteString(text)
	}
	return b.String()
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// substring returns runes [start,end) of s, clamped to its length
func substring(s string, start, end int) string {
	runes := []rune(s)
	start = max(0, min(start, len(runes)))
	end = max(start, min(end, len(runes)))
	return string(runes[start:end])
}
